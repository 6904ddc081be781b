package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Score file formats understood by the document codec.
var scoreExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// ValidateScorePath validates a score file path supplied on the command line
// or through the API. Only the formats the codec can read are accepted.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - Extension must be .json, .yaml or .yml
func ValidateScorePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "score path cannot be empty")
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "score path contains invalid characters")
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !scoreExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported score format %q (want .json, .yaml or .yml)", ext)
	}

	return nil
}

// ValidateDocumentID validates a stored score identifier. IDs become file
// names in the file store and keys in the mongo store, so they are kept to a
// conservative alphabet.
func ValidateDocumentID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "document id cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "document id too long (max 128 characters)")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return New(ErrCodeInvalidInput, "document id contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateWorkers validates a worker count for the parallel layout stage.
func ValidateWorkers(n int) error {
	if n < 1 || n > 256 {
		return New(ErrCodeInvalidInput, "workers must be between 1 and 256, got %d", n)
	}
	return nil
}
