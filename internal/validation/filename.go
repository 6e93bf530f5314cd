// Package validation provides pre-flight checks for uploads.
// Every check runs locally; no request is made and no transfer slot is taken.
package validation

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/chinmay4o/superlinks/internal/constants"
)

// ValidateFilename checks the original filename sent with an upload.
//
// Returns an error if the filename:
//   - Is empty
//   - Is longer than constants.MaxFilenameLength bytes
//   - Is not valid UTF-8 or contains null bytes
//   - Contains path separators (/ or \) or is ".."
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if len(filename) > constants.MaxFilenameLength {
		return fmt.Errorf("filename is %d bytes, maximum is %d", len(filename), constants.MaxFilenameLength)
	}
	if !utf8.ValidString(filename) {
		return fmt.Errorf("filename is not valid UTF-8")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte")
	}
	if strings.ContainsRune(filename, '/') || strings.ContainsRune(filename, '\\') {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// Separators are already rejected, so only the literal ".." remains dangerous.
	// Names like "notes..v2.txt" are fine.
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// ValidateFolder checks the optional destination folder of an upload. The
// folder is a relative, slash-separated path that must stay inside the
// user's storage area.
//
// Example:
//
//	ValidateFolder("covers/2026") // OK
//	ValidateFolder("../other")    // Error: escapes the storage area
func ValidateFolder(folder string) error {
	if folder == "" {
		return nil
	}
	if strings.ContainsRune(folder, 0) || strings.ContainsRune(folder, '\\') {
		return fmt.Errorf("folder contains invalid characters: %q", folder)
	}
	if strings.HasPrefix(folder, "/") {
		return fmt.Errorf("folder must be relative: %s", folder)
	}
	clean := path.Clean(folder)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("folder escapes the storage area: %s", folder)
	}
	return nil
}
