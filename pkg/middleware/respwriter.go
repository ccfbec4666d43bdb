package middleware

import "net/http"

// statusWriter captures the response status code for the observability
// wrappers. WriteHeader is recorded once; implicit 200s are handled by
// initializing status before the handler runs.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// cacheStatus reads the X-Cache header set by the ISR handler. Empty when
// the response did not come from the cache layer.
func (w *statusWriter) cacheStatus() string {
	return w.Header().Get("X-Cache")
}
