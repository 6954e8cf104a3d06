package handlers

import (
	"net/http"
	"time"
)

const (
	serviceName    = "factory-ops-api"
	serviceVersion = "1.0.0"
)

func (api *API) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Factory Operations API",
		"version": serviceVersion,
		"health":  api.apiPrefix + "/documents/health",
	})
}

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": api.now().Format(time.RFC3339),
	})
}

func (api *API) DocumentsHealth(w http.ResponseWriter, r *http.Request) {
	api.moduleHealth(w, "documents")
}

func (api *API) MaintenanceHealth(w http.ResponseWriter, r *http.Request) {
	api.moduleHealth(w, "maintenance")
}

func (api *API) moduleHealth(w http.ResponseWriter, module string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   module,
		"timestamp": api.now().Format(time.RFC3339),
	})
}

func (api *API) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "not_found", "route not found")
}

func (api *API) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
