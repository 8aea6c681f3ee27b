package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes. Everything under /api/v1 except
// auth and the system endpoints requires a bearer token.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// System. Health lives at the root so orchestrator checks do not
	// depend on the API prefix.
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/health/live", s.app.APIHandler.LiveHandler)
	mux.HandleFunc("/health/extended", s.app.APIHandler.ExtendedHealthHandler)
	mux.HandleFunc("/ready", s.app.APIHandler.ReadyHandler)
	mux.HandleFunc("/api/v1/version", s.app.APIHandler.VersionHandler)

	// Authentication
	mux.HandleFunc("/api/v1/auth/register", s.app.AuthHandler.RegisterHandler)
	mux.HandleFunc("/api/v1/auth/login", s.app.AuthHandler.LoginHandler)
	mux.HandleFunc("/api/v1/users/me", s.authed(s.app.UserHandler.MeHandler))

	// Catalog
	mux.HandleFunc("/api/v1/languages", s.authed(s.collection(
		s.app.CatalogHandler.ListLanguagesHandler, s.app.CatalogHandler.CreateLanguageHandler)))
	mux.HandleFunc("/api/v1/languages/", s.authed(s.byID("/api/v1/languages/", s.app.CatalogHandler.LanguageHandler)))
	mux.HandleFunc("/api/v1/voices", s.authed(s.collection(
		s.app.CatalogHandler.ListVoicesHandler, s.app.CatalogHandler.CreateVoiceHandler)))
	mux.HandleFunc("/api/v1/voices/", s.authed(s.byID("/api/v1/voices/", s.app.CatalogHandler.VoiceHandler)))
	mux.HandleFunc("/api/v1/topics", s.authed(s.collection(
		s.app.CatalogHandler.ListTopicsHandler, s.app.CatalogHandler.CreateTopicHandler)))
	mux.HandleFunc("/api/v1/topics/", s.authed(s.byID("/api/v1/topics/", s.app.CatalogHandler.TopicHandler)))
	mux.HandleFunc("/api/v1/accounts", s.authed(s.collection(
		s.app.CatalogHandler.ListAccountsHandler, s.app.CatalogHandler.CreateAccountHandler)))
	mux.HandleFunc("/api/v1/accounts/", s.authed(s.byID("/api/v1/accounts/", s.app.CatalogHandler.AccountHandler)))

	// Jobs and dispatch
	mux.HandleFunc("/api/v1/jobs", s.authed(s.collection(
		s.app.JobHandler.ListJobsHandler, s.app.JobHandler.CreateJobHandler)))
	mux.HandleFunc("/api/v1/jobs/", s.authed(s.handleJobRoutes))
	mux.HandleFunc("/api/v1/dead-letters", s.authed(s.app.JobHandler.DeadLettersHandler))

	// 404 for unmatched API routes
	mux.HandleFunc("/api/v1/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// collection dispatches GET to list and POST to create.
func (s *Server) collection(list, create http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			list(w, r)
		case "POST":
			create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// byID extracts the trailing id from the path and hands it to the handler.
func (s *Server) byID(prefix string, handler func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		if id == "" || strings.Contains(id, "/") {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		handler(w, r, id)
	}
}

// handleJobRoutes routes /api/v1/jobs/{id} and its subresources.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		s.app.JobHandler.JobByIDHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "submit":
		s.app.JobHandler.SubmitJobHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "cancel":
		s.app.JobHandler.CancelHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "executions":
		s.app.JobHandler.ListExecutionsHandler(w, r, id)
	case len(parts) == 3 && parts[1] == "executions" && parts[2] == "latest":
		s.app.JobHandler.LatestExecutionHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "splits":
		s.app.JobHandler.ListSplitsHandler(w, r, id)
	case len(parts) == 4 && parts[1] == "splits" && parts[3] == "regenerate":
		s.app.JobHandler.RegenerateImageHandler(w, r, id, parts[2])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
