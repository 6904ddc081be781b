package errors

import (
	"strings"
	"testing"
)

func TestValidateScorePath(t *testing.T) {
	tests := []struct {
		input    string
		wantErr  bool
		wantCode Code
	}{
		{"score.json", false, ""},
		{"scores/bach.yaml", false, ""},
		{"SCORE.YML", false, ""},
		{"", true, ErrCodeInvalidPath},
		{"bad\x00.json", true, ErrCodeInvalidPath},
		{"score.musicxml", true, ErrCodeInvalidFormat},
		{"score", true, ErrCodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateScorePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScorePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, tt.wantCode) {
				t.Errorf("ValidateScorePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateDocumentID(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"minuet-in-g", false},
		{"BWV_846", false},
		{"", true},
		{"../etc/passwd", true},
		{"a b", true},
		{strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateDocumentID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocumentID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWorkers(t *testing.T) {
	for _, n := range []int{1, 8, 256} {
		if err := ValidateWorkers(n); err != nil {
			t.Errorf("ValidateWorkers(%d) = %v, want nil", n, err)
		}
	}
	for _, n := range []int{0, -1, 257} {
		if err := ValidateWorkers(n); err == nil {
			t.Errorf("ValidateWorkers(%d) = nil, want error", n)
		}
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidPath,
		ErrCodeInvalidNumber,
		ErrCodeInvalidFormat,
		ErrCodeNotFound,
		ErrCodeFileNotFound,
		ErrCodeMissingElement,
		ErrCodeMissingCapability,
		ErrCodeDivisionOverflow,
		ErrCodeFixupLoop,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
