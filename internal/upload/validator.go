package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

type RejectionKind string

const (
	RejectMissingFilename      RejectionKind = "missing_filename"
	RejectDisallowedExtension  RejectionKind = "disallowed_extension"
	RejectTooLarge             RejectionKind = "too_large"
	RejectEmpty                RejectionKind = "empty_file"
	RejectUnsupportedPhotoType RejectionKind = "unsupported_photo_type"
)

const (
	DefaultMaxBytes    int64 = 10 * 1024 * 1024
	defaultContentType       = "application/octet-stream"
)

var (
	DefaultExtensions = []string{".pdf", ".docx", ".jpg", ".jpeg", ".png"}
	PhotoExtensions   = []string{".jpg", ".jpeg", ".png"}
)

// Rejection is the typed reason an upload was refused.
type Rejection struct {
	Kind      RejectionKind
	Extension string
	Allowed   []string
	MaxBytes  int64
}

func (r *Rejection) Error() string {
	switch r.Kind {
	case RejectMissingFilename:
		return "file must have a filename"
	case RejectDisallowedExtension:
		return fmt.Sprintf("file type %q not allowed, allowed types: %s", r.Extension, strings.Join(r.Allowed, ", "))
	case RejectTooLarge:
		return fmt.Sprintf("file size exceeds maximum allowed size of %gMB", float64(r.MaxBytes)/(1024*1024))
	case RejectEmpty:
		return "file is empty"
	case RejectUnsupportedPhotoType:
		return "only image files (JPG, PNG) are allowed for photo reports"
	default:
		return "upload rejected"
	}
}

// AsRejection unwraps err into a *Rejection when it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

// FileDescriptor is what the client declared about an uploaded part.
type FileDescriptor struct {
	Filename    string
	ContentType string
}

type Validator struct {
	allowed    []string
	allowedSet map[string]struct{}
	maxBytes   int64
}

// NewValidator expects extensions already lower-cased with a leading dot.
// Empty arguments select the defaults.
func NewValidator(allowed []string, maxBytes int64) *Validator {
	if len(allowed) == 0 {
		allowed = DefaultExtensions
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	set := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		set[ext] = struct{}{}
	}
	return &Validator{
		allowed:    append([]string(nil), allowed...),
		allowedSet: set,
		maxBytes:   maxBytes,
	}
}

func (v *Validator) MaxBytes() int64 { return v.maxBytes }

func (v *Validator) Allowed() []string { return append([]string(nil), v.allowed...) }

// Validate checks the filename and returns the normalized extension and
// content type.
func (v *Validator) Validate(file FileDescriptor) (string, string, error) {
	if strings.TrimSpace(file.Filename) == "" {
		return "", "", &Rejection{Kind: RejectMissingFilename}
	}

	ext := Extension(file.Filename)
	if _, ok := v.allowedSet[ext]; !ok {
		return "", "", &Rejection{Kind: RejectDisallowedExtension, Extension: ext, Allowed: v.Allowed()}
	}

	return ext, contentTypeFor(file.ContentType, ext), nil
}

// ValidatePhoto applies Validate and then narrows to image extensions.
func (v *Validator) ValidatePhoto(file FileDescriptor) (string, string, error) {
	ext, contentType, err := v.Validate(file)
	if err != nil {
		return "", "", err
	}
	for _, allowed := range PhotoExtensions {
		if ext == allowed {
			return ext, contentType, nil
		}
	}
	return "", "", &Rejection{Kind: RejectUnsupportedPhotoType, Extension: ext, Allowed: append([]string(nil), PhotoExtensions...)}
}

// ValidateSize measures the content and rewinds it so it can be read again.
func (v *Validator) ValidateSize(content io.ReadSeeker) (int64, error) {
	size, err := io.Copy(io.Discard, io.LimitReader(content, v.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("measure upload: %w", err)
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind upload: %w", err)
	}

	if size > v.maxBytes {
		return 0, &Rejection{Kind: RejectTooLarge, MaxBytes: v.maxBytes}
	}
	if size == 0 {
		return 0, &Rejection{Kind: RejectEmpty}
	}
	return size, nil
}

// Extension returns the lower-cased suffix of the last path element.
// Dotfiles such as ".env" have no extension.
func Extension(filename string) string {
	base := baseName(filename)
	if strings.TrimLeft(base, ".") == "" || strings.LastIndex(base, ".") <= 0 {
		return ""
	}
	ext := filepath.Ext(base)
	if ext == "." {
		return ""
	}
	return strings.ToLower(ext)
}

func baseName(filename string) string {
	normalized := strings.ReplaceAll(filename, `\`, "/")
	if index := strings.LastIndex(normalized, "/"); index >= 0 {
		normalized = normalized[index+1:]
	}
	return normalized
}

func contentTypeFor(declared, ext string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != defaultContentType {
		return declared
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	if declared != "" {
		return declared
	}
	return defaultContentType
}
