package validation

import (
	"testing"

	"github.com/abodcard/storefront/internal/model"
)

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"+971501234567", true},
		{"0501234567", true},
		{"050 123 4567", true},
		{"1234567", false},
		{"abcdefgh", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidPhone(tt.input); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"user@example.com", true},
		{"a@b.co", true},
		{"no-at-sign", false},
		{"user@", false},
		{"@example.com", false},
		{"user@nodot", false},
		{"user@.com", false},
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.input); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsValidAccountID(t *testing.T) {
	if IsValidAccountID("ab") {
		t.Errorf("two characters must be rejected")
	}
	if !IsValidAccountID("  abc  ") {
		t.Errorf("trimmed three characters must pass")
	}
}

func TestValidateDeliveryInfo(t *testing.T) {
	if !ValidateDeliveryInfo(model.DeliveryPhone, "+971501234567") {
		t.Errorf("valid phone rejected")
	}
	if ValidateDeliveryInfo(model.DeliveryEmail, "bad") {
		t.Errorf("invalid email accepted")
	}
	// Типы без пользовательского ввода не проверяются.
	if !ValidateDeliveryInfo(model.DeliveryCode, "") {
		t.Errorf("code delivery must not require info")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"50", true},
		{" 12.50 ", true},
		{"0", false},
		{"-5", false},
		{"abc", false},
		{"", false},
	}

	for _, tt := range tests {
		if _, ok := ParseAmount(tt.input); ok != tt.ok {
			t.Errorf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
	}
}
