package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahmethakanbesel/socpanel/internal/job"
)

// NewHandler creates the full HTTP handler of the mock platform with routes
// and middleware. Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(jobSvc *job.Service, auth AuthConfig) http.Handler {
	return newRouter(jobSvc, auth)
}

func newRouter(jobSvc *job.Service, auth AuthConfig) http.Handler {
	h := &handler{jobSvc: jobSvc, auth: auth}

	r := chi.NewRouter()
	r.Use(recovery, requestID, logging)
	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Get("/health", h.health)
	r.Post("/api/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(auth))

		r.Post("/api/poll/stat/export", h.submitExport)
		r.Post("/api/poll/stat/export/progress", h.exportProgress)
		r.Post("/api/poll/stat/export/progress/done", h.exportDone)
		r.Get("/storage/export/{file}", h.downloadExport)

		r.Post("/api/poll/list", h.listPolls)
		r.Post("/api/poll/get", h.getPoll)
		r.Post("/api/poll/stat", h.pollStat)
		r.Post("/api/counter/list", h.listCounters)

		r.Post("/api/block/getbypoll", h.listBlocks)
		r.Post("/api/question/getbypoll", h.questionsByPoll)
		r.Post("/api/question/getbyblock", h.questionsByBlock)
		r.Post("/api/poll/stat/conversion", h.listConversions)
		r.Post("/api/poll/source/links", h.createLinks)
	})

	return r
}
