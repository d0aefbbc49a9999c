package types

import "time"

// AttachmentType is derived from the file extension.
type AttachmentType string

const (
	AttachmentPhoto    AttachmentType = "photo"
	AttachmentDocument AttachmentType = "document"
	AttachmentVideo    AttachmentType = "video"
	AttachmentOther    AttachmentType = "other"
)

// ProjectAttachment binds a stored file to a project and, optionally, to
// one of its updates.
type ProjectAttachment struct {
	// ID is the unique identifier of the attachment.
	ID int `json:"id" db:"id"`

	ProjectID       int  `json:"project_id" db:"project_id"`
	ProjectUpdateID *int `json:"project_update_id" db:"project_update_id"`

	// UploadedBy identifies the uploading user.
	UploadedBy   int    `json:"uploaded_by" db:"uploaded_by"`
	UploaderName string `json:"uploader_name,omitempty" db:"-"`

	// Filename is the generated, collision-resistant object name.
	Filename string `json:"filename" db:"filename"`

	// OriginalFilename is the name supplied by the client.
	OriginalFilename string `json:"original_filename" db:"original_filename"`

	// FilePath is the storage key of the object.
	FilePath string `json:"-" db:"file_path"`

	FileSize    int64          `json:"file_size" db:"file_size"`
	MimeType    string         `json:"mime_type" db:"mime_type"`
	Type        AttachmentType `json:"type" db:"type"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"`

	// IsPublic attachments are reachable through a direct URL.
	IsPublic bool `json:"is_public" db:"is_public"`

	// URL is the direct public URL for public attachments and the
	// download endpoint for private ones.
	URL string `json:"url" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
