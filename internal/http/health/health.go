package health

import (
	"net/http"
	"sync/atomic"
)

// Handler serves liveness and readiness checks for the HTTP transport.
type Handler struct {
	ready atomic.Bool
	check atomic.Pointer[func() error]
}

// New returns a health handler instance.
func New() *Handler {
	return &Handler{}
}

// SetReady marks the handler as ready.
func (h *Handler) SetReady() {
	h.ready.Store(true)
}

// SetNotReady marks the handler as not ready.
func (h *Handler) SetNotReady() {
	h.ready.Store(false)
}

// SetCheck installs a readiness check consulted after the ready flag.
func (h *Handler) SetCheck(check func() error) {
	if check == nil {
		h.check.Store(nil)
		return
	}
	h.check.Store(&check)
}

// Healthz handles liveness checks.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz handles readiness checks.
func (h *Handler) Readyz(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	if check := h.check.Load(); check != nil {
		if err := (*check)(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready: " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
