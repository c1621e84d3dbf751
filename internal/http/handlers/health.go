package handlers

import (
	"net/http"
)

// Health reports liveness of the API process only; it does not probe the
// engine.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
