package api

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/browserbase-mcp/internal/proxy"
	"github.com/shehryarbajwa/browserbase-mcp/internal/ratelimit"
)

const maxBodySize = 1 << 20

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(proxyServer *proxy.Server, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter().UseEncodedPath()

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Tool and session endpoints are rate limited per client
	limited := api.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(rateLimiter))

	limited.HandleFunc("/tools", h.ListTools).Methods("GET")
	limited.HandleFunc("/tools/{name}", h.CallTool).Methods("POST")

	limited.HandleFunc("/sessions", h.sweep(h.CreateSession)).Methods("POST")
	limited.HandleFunc("/sessions", h.sweep(h.ListSessions)).Methods("GET")
	limited.HandleFunc("/sessions/{id}", h.sweep(h.GetSession)).Methods("GET")
	limited.HandleFunc("/sessions/{id}", h.sweep(h.DeleteSession)).Methods("DELETE")

	// Live view stays open for the life of the session, so it is not limited
	api.HandleFunc("/sessions/{id}/live", h.sweep(func(w http.ResponseWriter, r *http.Request) {
		id, err := url.PathUnescape(mux.Vars(r)["id"])
		if err != nil {
			http.Error(w, "Invalid session id", http.StatusBadRequest)
			return
		}
		proxyServer.HandleLiveView(w, r, id)
	})).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
