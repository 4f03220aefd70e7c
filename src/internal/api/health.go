package api

import (
	"net/http"
)

// CheckHealth reports whether the service is running, its last pass
// succeeded and the filter store answers.
// GET /api/v1/health
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthCheckResponse{
		Healthy: true,
		Checks:  make(map[string]CheckResult),
	}

	fail := func(name, message string) {
		response.Healthy = false
		response.Checks[name] = CheckResult{Passed: false, Message: message}
	}
	pass := func(name, message string) {
		response.Checks[name] = CheckResult{Passed: true, Message: message}
	}

	status := h.ctrl.Status()

	if status.Running {
		pass("service", "Service is running")
	} else {
		fail("service", "Service is not running")
	}

	if status.LastError != "" {
		fail("last_pass", "Last "+status.LastPass+" pass failed: "+status.LastError)
	} else {
		pass("last_pass", "Last pass succeeded")
	}

	if _, err := h.ctrl.Rules(); err != nil {
		fail("filter_store", "Filter store is unavailable: "+err.Error())
	} else {
		pass("filter_store", "Filter store is available")
	}

	code := http.StatusOK
	if !response.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}
