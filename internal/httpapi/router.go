// Package httpapi exposes the push-protocol's five HTTP resources and a
// minimal operator surface on top of the registry, queue, formatter, and
// ingest/fan-out pipelines.
package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router wraps the standard library's ServeMux rather than pulling in a
// third-party routing dependency — the wire format here is fixed query
// parameters and five flat paths, nothing a router framework would buy us.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{mux: http.NewServeMux(), logger: logger}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterProtocolRoutes wires the five terminal-facing endpoints.
func (r *Router) RegisterProtocolRoutes(h *ProtocolHandler) {
	r.Handle("/iclock/cdata", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.Init(w, req)
		case http.MethodPost:
			h.Upload(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/iclock/getrequest", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Poll(w, req)
	})
	r.Handle("/iclock/devicecmd", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Reply(w, req)
	})
	r.Handle("/iclock/ping", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Ping(w, req)
	})
}

// RegisterAdminRoutes wires the minimal operator surface and the
// diagnostics endpoint.
func (r *Router) RegisterAdminRoutes(h *AdminHandler) {
	r.Handle("/admin/users", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.PutUser(w, req)
		case http.MethodDelete:
			h.DeleteUser(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/admin/templates", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.PutTemplate(w, req)
		case http.MethodDelete:
			h.DeleteTemplate(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/admin/terminals/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.TerminalQueue(w, req)
	})
}
