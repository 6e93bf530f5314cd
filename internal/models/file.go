package models

// UploadType selects the server-side destination and the size ceiling of an upload.
type UploadType string

const (
	UploadTypeGeneral  UploadType = "general"
	UploadTypeImage    UploadType = "image"
	UploadTypeVideo    UploadType = "video"
	UploadTypeDocument UploadType = "document"
	UploadTypeProduct  UploadType = "product"
	UploadTypeAvatar   UploadType = "avatar"
)

// FileDescriptor is the server's description of a stored file.
type FileDescriptor struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	Size         int64  `json:"size,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
}

// UploadMetadata travels with the file binary in the multipart request.
type UploadMetadata struct {
	OriginalName string     `json:"originalName"`
	UploadType   UploadType `json:"uploadType"`
	ProductID    string     `json:"productId,omitempty"`
	Folder       string     `json:"folder,omitempty"`
	Description  string     `json:"description,omitempty"`
}
