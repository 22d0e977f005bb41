package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/api/middleware"
)

// AdminHandler serves maintenance operations.
type AdminHandler struct {
	exporter Exporter
	log      zerolog.Logger
}

// NewAdminHandler creates an admin handler. exporter may be nil when no
// snapshot bucket is configured.
func NewAdminHandler(exporter Exporter, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{exporter: exporter, log: log}
}

// Export handles POST /api/admin/export
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Snapshot export is not configured")
		return
	}

	ownerID := middleware.OwnerID(r.Context())
	object, err := h.exporter.Export(r.Context(), ownerID)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", ownerID).Msg("Snapshot export failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Snapshot export failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"object": object,
		"status": "exported",
	})
}

// NewRouter assembles the HTTP surface: health, event intake, budget
// maintenance, job status and admin export, behind the shared middleware
// chain.
func NewRouter(
	events *EventsHandler,
	budgets *BudgetsHandler,
	jobsHandler *JobsHandler,
	admin *AdminHandler,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Owner)

		r.Post("/transactions/events", events.TransactionWrite)

		r.Route("/budgets/{budgetID}", func(r chi.Router) {
			r.Post("/recalculate", budgets.Recalculate)
			r.Post("/reassign", budgets.Reassign)
			r.Post("/periods/extend", budgets.ExtendPeriods)
			r.Get("/periods", budgets.ListPeriods)
		})

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{jobID}", jobsHandler.GetJob)

		r.Post("/admin/export", admin.Export)
	})

	return r
}
