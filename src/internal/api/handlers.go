package api

import (
	"encoding/json"
	"net/http"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/service"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

// ServiceController is the part of the service the API drives.
// It is satisfied by *service.ServiceManager.
type ServiceController interface {
	IsRunning() bool
	Status() service.Status
	Rules() ([]store.Entry, error)
	Namer() *rules.Namer
	ApplyNow() error
	ResetNow() error
	Reload() error
}

var _ ServiceController = (*service.ServiceManager)(nil)

// Handler manages all API endpoints and dependencies.
type Handler struct {
	ctrl          ServiceController
	grammar       rules.Grammar
	strictActions bool
	log           *log.Logger
}

// NewHandler creates a new API handler. grammar and strictActions are the
// defaults used by settings checks that do not name their own.
func NewHandler(ctrl ServiceController, grammar rules.Grammar, strictActions bool, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		ctrl:          ctrl,
		grammar:       grammar,
		strictActions: strictActions,
		log:           logger,
	}
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// writeJSONData writes a successful JSON response with data.
func writeJSONData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

// decodeJSON decodes JSON from the request body.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
