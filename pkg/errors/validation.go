package errors

import (
	"strings"
	"unicode"
)

// ValidateDatasetName validates a dataset name for safety and correctness.
// Dataset names become output file names, so they are rejected if they
// could escape the output directory.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 255 characters
func ValidateDatasetName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "dataset name cannot be empty")
	}

	if len(name) > 255 {
		return New(ErrCodeInvalidInput, "dataset name too long (max 255 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "dataset name contains invalid control characters")
		}
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidInput, "dataset name cannot be %q", name)
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "dataset name cannot contain path separators: %q", name)
	}

	return nil
}

// ValidatePath validates an input or output path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
