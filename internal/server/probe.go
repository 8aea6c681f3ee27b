package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/vidsmith/internal/app"
)

// NewProbe builds the worker's health listener. It carries only the
// liveness and readiness surface so orchestrators can check a worker
// without the control-plane API being present.
func NewProbe(application *app.App) *Server {
	s := &Server{
		app: application,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", application.APIHandler.HealthHandler)
	mux.HandleFunc("/health/live", application.APIHandler.LiveHandler)
	mux.HandleFunc("/health/extended", application.APIHandler.ExtendedHealthHandler)
	mux.HandleFunc("/ready", application.APIHandler.ReadyHandler)
	s.router = mux

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Worker.ProbePort)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}
