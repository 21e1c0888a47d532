package httpapi

import (
	"net/http"
	"time"
)

// setProtocolHeaders sets the headers every push-protocol response must
// carry, regardless of which of the five endpoints produced it.
func setProtocolHeaders(w http.ResponseWriter, serverVersion string) {
	h := w.Header()
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	h.Set("Content-Type", "text/plain")
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-store")
	h.Set("Server", serverVersion)
}
