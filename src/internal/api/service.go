package api

import (
	stderrors "errors"
	"net/http"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/service"
)

// ControlService runs an apply, reset or reload pass and waits for it.
// POST /api/v1/service
func (h *Handler) ControlService(w http.ResponseWriter, r *http.Request) {
	var req ServiceControlRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteInvalidRequest(w, "Invalid JSON: "+err.Error())
		return
	}

	var run func() error
	switch req.Action {
	case ActionApply:
		run = h.ctrl.ApplyNow
	case ActionReset:
		run = h.ctrl.ResetNow
	case ActionReload:
		run = h.ctrl.Reload
	default:
		WriteInvalidRequest(w, "Unknown action "+req.Action+`; expected "apply", "reset" or "reload"`)
		return
	}

	if err := run(); err != nil {
		h.writeServiceFailure(w, req.Action, err)
		return
	}

	writeJSONData(w, ServiceControlResponse{
		Status:  "success",
		Message: "Service " + req.Action + " completed",
		Result:  h.ctrl.Status().LastResult,
	})
}

func (h *Handler) writeServiceFailure(w http.ResponseWriter, action string, err error) {
	if stderrors.Is(err, service.ErrNotRunning) {
		WriteNotRunning(w)
		return
	}

	h.log.Warnf("Service %s failed: %v", action, err)

	if stderrors.Is(err, errors.ErrParse) {
		WriteParseError(w, err.Error())
		return
	}

	var details map[string]interface{}
	if res := h.ctrl.Status().LastResult; res != nil && len(res.Failures) > 0 {
		details = map[string]interface{}{"failures": res.Failures}
	}
	WriteServiceError(w, "Service "+action+" failed: "+err.Error(), details)
}
