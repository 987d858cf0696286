package cacheproxy

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ericselin/cacheproxy/cache"
)

// NewAdminHandler returns the management API served next to the proxy.
// It exposes the shared cache for inspection and emptying; it is not
// part of the proxy data path.
func NewAdminHandler(c cache.Cache) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, c.Stats())
	})

	r.Get("/keys", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, c.Keys())
	})

	r.Delete("/cache", func(w http.ResponseWriter, req *http.Request) {
		c.Purge()
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Could not encode response", http.StatusInternalServerError)
	}
}
