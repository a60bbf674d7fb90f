package app

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pedex/cmd/internal/metrics"
	"pedex/cmd/internal/realtime"
	"pedex/cmd/internal/state"
)

// StatusSource is the read side of the session exposed on the status surface.
type StatusSource interface {
	IsAuthenticated() bool
	LiveState() realtime.State
	View() state.View
}

func registerHTTP(mux *http.ServeMux, log Logger, cfg Config, src StatusSource, dbPool *pgxpool.Pool) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !src.IsAuthenticated() {
			http.Error(w, "not authenticated", http.StatusServiceUnavailable)
			return
		}

		if cfg.ReadinessRequireLive && src.LiveState() != realtime.StateConnected {
			http.Error(w, "live channel "+src.LiveState().String(), http.StatusServiceUnavailable)
			return
		}

		if dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.HandleFunc("GET /v1/session", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.View()); err != nil {
			log.Warn("status.session.encode_fail", "err", err)
		}
	})

	mux.Handle("GET /metrics", metrics.Handler())
}

// RuntimeBaseURL turns a listen address into a URL a local client can reach.
func RuntimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
