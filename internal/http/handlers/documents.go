package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/iago/factory-ops-back/internal/upload"
)

const uploadFieldName = "file"

type uploadPart struct {
	file       io.ReadSeeker
	descriptor upload.FileDescriptor
	form       *multipart.Form
}

func (p uploadPart) Close() {
	if closer, ok := p.file.(io.Closer); ok {
		_ = closer.Close()
	}
	if p.form != nil {
		_ = p.form.RemoveAll()
	}
}

// readUploadPart bounds the body and extracts the "file" part. It writes the
// error response itself and reports whether the caller may continue.
func (api *API) readUploadPart(w http.ResponseWriter, r *http.Request) (uploadPart, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, api.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(api.maxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rejection := &upload.Rejection{Kind: upload.RejectTooLarge, MaxBytes: api.maxUploadBytes}
			writeError(w, r, http.StatusBadRequest, string(rejection.Kind), rejection.Error())
			return uploadPart{}, false
		}
		writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart form body is required")
		return uploadPart{}, false
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		// A part sent with filename="" is parsed as a plain value; hand it to
		// the validator so it is rejected for the missing name.
		if values := r.MultipartForm.Value[uploadFieldName]; len(values) > 0 {
			return uploadPart{
				file:       strings.NewReader(values[0]),
				descriptor: upload.FileDescriptor{},
				form:       r.MultipartForm,
			}, true
		}
		_ = r.MultipartForm.RemoveAll()
		writeError(w, r, http.StatusUnprocessableEntity, "missing_fields", "missing required fields: file")
		return uploadPart{}, false
	}

	return uploadPart{
		file: file,
		descriptor: upload.FileDescriptor{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		},
		form: r.MultipartForm,
	}, true
}

func (api *API) UploadDocument(w http.ResponseWriter, r *http.Request) {
	part, ok := api.readUploadPart(w, r)
	if !ok {
		return
	}
	defer part.Close()

	metadata, err := api.documents.Upload(r.Context(), part.descriptor, part.file)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, metadata)
}
