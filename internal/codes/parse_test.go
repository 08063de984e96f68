package codes

import (
	"errors"
	"strings"
	"testing"

	"github.com/abodcard/storefront/internal/model"
)

func TestParse_TextCodes(t *testing.T) {
	input := "AAAA-1111\n\nBBBB-2222\n  CCCC-3333  \n"

	parsed, err := Parse(input, "c1", model.CodeTypeText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 3 {
		t.Fatalf("expected 3 codes, got %d", len(parsed))
	}
	if parsed[2].Code != "CCCC-3333" {
		t.Fatalf("code must be trimmed, got %q", parsed[2].Code)
	}
	for _, c := range parsed {
		if c.CategoryID != "c1" || c.CodeType != model.CodeTypeText {
			t.Fatalf("category and type must be set on every code: %+v", c)
		}
	}
}

func TestParse_DualCodes(t *testing.T) {
	parsed, err := Parse("CODE1|SN1\nCODE2 | SN2", "c1", model.CodeTypeDual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(parsed))
	}
	if parsed[1].Code != "CODE2" || parsed[1].SerialNumber != "SN2" {
		t.Fatalf("dual parts must be trimmed: %+v", parsed[1])
	}
}

func TestParse_DualWithoutSeparator(t *testing.T) {
	_, err := Parse("CODE1|SN1\nBROKEN", "c1", model.CodeTypeDual)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestParse_DuplicateCode(t *testing.T) {
	_, err := Parse("AAAA\nAAAA", "c1", model.CodeTypeText)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse("  \n\n  ", "c1", model.CodeTypeText)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
