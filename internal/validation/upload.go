package validation

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/models"
)

// allowedMIME is the upload allow-list. Anything else is rejected before upload.
var allowedMIME = map[string]bool{
	// Images
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,

	// Video
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,

	// Audio (digital products)
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/ogg":  true,

	// Documents and archives
	"application/pdf":      true,
	"application/zip":      true,
	"application/epub+zip": true,
	"application/json":     true,
	"text/plain":           true,
	"text/csv":             true,
	"text/markdown":        true,
	"application/msword":   true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// Candidate describes a file offered for upload.
type Candidate struct {
	Name     string
	Size     int64
	MimeType string
}

// NormalizeMIME lower-cases a media type and strips parameters such as charset.
func NormalizeMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

// DetectMIME guesses a media type from a filename extension.
// Returns "application/octet-stream" when the extension is unknown.
func DetectMIME(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	// The system MIME table varies by platform; pin the types we accept.
	switch ext {
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".epub":
		return "application/epub+zip"
	case ".zip":
		return "application/zip"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return NormalizeMIME(t)
	}
	return "application/octet-stream"
}

// IsAllowedMIME reports whether mimeType is on the upload allow-list.
func IsAllowedMIME(mimeType string) bool {
	return allowedMIME[NormalizeMIME(mimeType)]
}

// MaxSizeFor returns the per-file byte ceiling for a media type.
func MaxSizeFor(mimeType string) int64 {
	mt := NormalizeMIME(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return constants.MaxImageFileSize
	case strings.HasPrefix(mt, "video/"):
		return constants.MaxVideoFileSize
	default:
		return constants.MaxGeneralFileSize
	}
}

// ValidateFile runs every per-file check. The returned error is always an
// *api.ValidationError.
func ValidateFile(c Candidate, uploadType models.UploadType) error {
	if err := ValidateFilename(c.Name); err != nil {
		return &api.ValidationError{Field: "filename", File: c.Name, Message: err.Error()}
	}

	mt := NormalizeMIME(c.MimeType)
	if mt == "" {
		mt = DetectMIME(c.Name)
	}
	if !allowedMIME[mt] {
		return &api.ValidationError{Field: "mimeType", File: c.Name, Message: fmt.Sprintf("file type %s is not allowed", mt)}
	}

	switch uploadType {
	case models.UploadTypeImage, models.UploadTypeAvatar:
		if !strings.HasPrefix(mt, "image/") {
			return &api.ValidationError{Field: "mimeType", File: c.Name, Message: fmt.Sprintf("%s upload requires an image, got %s", uploadType, mt)}
		}
	case models.UploadTypeVideo:
		if !strings.HasPrefix(mt, "video/") {
			return &api.ValidationError{Field: "mimeType", File: c.Name, Message: fmt.Sprintf("video upload requires a video, got %s", mt)}
		}
	}

	if c.Size < 0 {
		return &api.ValidationError{Field: "size", File: c.Name, Message: "file size is unknown"}
	}
	if limit := MaxSizeFor(mt); c.Size > limit {
		return &api.ValidationError{
			Field:   "size",
			File:    c.Name,
			Message: fmt.Sprintf("file is %s, maximum for %s is %s", humanize.IBytes(uint64(c.Size)), mt, humanize.IBytes(uint64(limit))),
		}
	}
	return nil
}

// ValidateBatch checks the batch size and then every file. It stops at the
// first violation so that nothing from an invalid batch is enqueued.
func ValidateBatch(files []Candidate, uploadType models.UploadType) error {
	if len(files) == 0 {
		return &api.ValidationError{Field: "files", Message: "no files to upload"}
	}
	if len(files) > constants.MaxFilesPerBatch {
		return &api.ValidationError{
			Field:   "files",
			Message: fmt.Sprintf("%d files selected, maximum per batch is %d", len(files), constants.MaxFilesPerBatch),
		}
	}
	for _, f := range files {
		if err := ValidateFile(f, uploadType); err != nil {
			return err
		}
	}
	return nil
}
