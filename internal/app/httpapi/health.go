package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/R3E-Network/storefront/internal/app/storage"
)

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]storage.Pinger, len(h.app.HealthChecks)+1)
	for name, p := range h.app.HealthChecks {
		checks[name] = p
	}
	if p, ok := h.app.Sessions.(storage.Pinger); ok {
		checks["sessions"] = p
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]healthCheck, len(checks))
	for _, name := range names {
		if err := checks[name].Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = healthCheck{Status: "down", Error: err.Error()}
			continue
		}
		results[name] = healthCheck{Status: "ok"}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":   overall,
		"checks":   results,
		"services": h.app.Descriptors(),
	})
}
