package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/iago/factory-ops-back/internal/http/middleware"
	"github.com/iago/factory-ops-back/internal/service"
	"github.com/iago/factory-ops-back/internal/upload"
)

var errInvalidPayload = errors.New("invalid payload")

// multipartOverhead is allowed on top of the file ceiling for part headers
// and boundaries.
const multipartOverhead = 1 << 20

type API struct {
	maintenance    *service.MaintenanceService
	documents      *service.DocumentService
	audit          *service.AuditService
	logger         log.Interface
	apiPrefix      string
	maxUploadBytes int64
	now            func() time.Time
}

type APIDependencies struct {
	Maintenance    *service.MaintenanceService
	Documents      *service.DocumentService
	Audit          *service.AuditService
	Logger         log.Interface
	APIPrefix      string
	MaxUploadBytes int64
}

func NewAPI(deps APIDependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = log.Log
	}
	maxUploadBytes := deps.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = upload.DefaultMaxBytes
	}
	return &API{
		maintenance:    deps.Maintenance,
		documents:      deps.Documents,
		audit:          deps.Audit,
		logger:         logger,
		apiPrefix:      deps.APIPrefix,
		maxUploadBytes: maxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps the service error taxonomy onto HTTP. Internal
// details are logged, never returned.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch service.KindOf(err) {
	case service.KindNotFound:
		writeError(w, r, http.StatusNotFound, "not_found", notFoundMessage(err))
	case service.KindValidation:
		if rejection, ok := upload.AsRejection(err); ok {
			writeError(w, r, http.StatusBadRequest, string(rejection.Kind), rejection.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	default:
		api.logger.WithError(err).WithFields(log.Fields{
			"request_id": middleware.GetRequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func notFoundMessage(err error) string {
	var serviceErr *service.Error
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}
	return "resource not found"
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

// timestamp accepts RFC 3339 and zone-less ISO 8601 values; the latter are
// read as UTC.
type timestamp struct {
	time.Time
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errInvalidPayload
}
