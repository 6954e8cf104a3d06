package domain

import "time"

const DocumentStatusDraft = "draft"

// DocumentMetadata describes a stored upload.
type DocumentMetadata struct {
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	Status     string    `json:"status"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	FileType   string    `json:"file_type"`
}
