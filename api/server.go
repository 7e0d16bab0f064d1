/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/employees/*            Employees, check-ins, absences, counters
  /api/disciplinary-records/* Record decisions
  /api/rules/*                Rule administration
  /api/incidents/*            Threshold configuration and incidents
  /api/audit                  Audit log
  /api/scenarios/*            Demo scenarios
  /metrics                    Prometheus exposition

SECURITY NOTE:
  No authentication middleware. The actor on administrative writes is
  whatever X-Actor-ID says.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions tunes NewRouter. Zero values select defaults.
type RouterOptions struct {
	AllowedOrigins []string

	// Gatherer backs /metrics. The route is omitted when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/check-ins", h.SubmitCheckIn)
			r.Post("/{id}/absences", h.ReportAbsence)
			r.Post("/{id}/attendance", h.RecordAttendance)
			r.Get("/{id}/accumulation", h.GetAccumulation)
			r.Put("/{id}/accumulation", h.CorrectAccumulation)
			r.Get("/{id}/disciplinary-records", h.ListDisciplinaryRecords)
		})

		r.Route("/disciplinary-records", func(r chi.Router) {
			r.Post("/{id}/decision", h.DecideRecord)
			r.Post("/{id}/complete", h.CompleteRecord)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/tardiness", h.ListTardinessRules)
			r.Post("/tardiness", h.SaveTardinessRule)
			r.Get("/disciplinary", h.ListDisciplinaryRules)
			r.Post("/disciplinary", h.SaveDisciplinaryRule)
			r.Post("/import", h.ImportRules)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.ListIncidents)
			r.Post("/evaluate", h.EvaluateThresholds)
			r.Get("/types", h.ListIncidentTypes)
			r.Post("/types", h.SaveIncidentType)
			r.Get("/configs", h.ListIncidentConfigs)
			r.Post("/configs", h.SaveIncidentConfig)
		})

		r.Get("/audit", h.ListAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Discipline Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Discipline Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/employees">/api/employees</a> - List employees</li>
<li><a href="/api/rules/tardiness">/api/rules/tardiness</a> - Lateness rules</li>
<li><a href="/api/rules/disciplinary">/api/rules/disciplinary</a> - Escalation rules</li>
<li><a href="/api/incidents">/api/incidents</a> - Raised incidents</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`))
	})

	return r
}
