// Package health serves the liveness endpoint.
package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Version is stamped at build time with -ldflags "-X .../health.Version=...".
var Version = "dev"

var now = time.Now

type response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Handler reports that the process is up. It touches no dependencies.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response{Status: "healthy", Timestamp: now().UTC(), Version: Version})
}
