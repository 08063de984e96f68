// Package validation содержит проверки пользовательского ввода.
package validation

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/abodcard/storefront/internal/model"
)

// IsValidPhone принимает номер длиной от 8 символов, содержащий цифры.
func IsValidPhone(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return false
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// IsValidEmail проверяет наличие @ и точки в доменной части.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// IsValidAccountID принимает непустой идентификатор аккаунта.
func IsValidAccountID(s string) bool {
	return len(strings.TrimSpace(s)) >= 3
}

// ValidateDeliveryInfo проверяет дополнительные данные для типа выдачи.
func ValidateDeliveryInfo(deliveryType model.DeliveryType, info string) bool {
	switch deliveryType {
	case model.DeliveryPhone:
		return IsValidPhone(info)
	case model.DeliveryEmail:
		return IsValidEmail(info)
	case model.DeliveryAccountID:
		return IsValidAccountID(info)
	}
	return true
}

// ParseAmount разбирает положительную долларовую сумму из пользовательского ввода.
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
