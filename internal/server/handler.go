package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	"github.com/ahmethakanbesel/socpanel/internal/job"
)

type handler struct {
	jobSvc *job.Service
	auth   AuthConfig
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionToken string `json:"session_token"`
}

type progressParams struct {
	PollID   int `json:"poll_id"`
	FormatID int `json:"format_id"`
}

type progressEntry struct {
	UUID   string         `json:"uuid"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Params progressParams `json:"params"`
}

type pollStat struct {
	EndedCount int `json:"ended_count"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if !h.auth.checkCredentials(req.Login, req.Password) {
		writeError(w, http.StatusLocked, "wrong login credentials")
		return
	}

	token, err := h.auth.issueToken(req.Login, time.Now())
	if err != nil {
		writeAppError(w, err)
		return
	}
	slog.Info("session issued", "login", req.Login)
	writeJSON(w, http.StatusOK, loginResponse{SessionToken: token})
}

func (h *handler) submitExport(w http.ResponseWriter, r *http.Request) {
	var req job.SubmitExportRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	j, err := h.jobSvc.Submit(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	slog.Info("export submitted", "login", subjectFromContext(r.Context()), "uuid", j.UUID, "poll", j.PollID)
	writeJSON(w, http.StatusOK, true)
}

func (h *handler) exportProgress(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobSvc.Progress(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	entries := make([]progressEntry, 0, len(jobs))
	for _, j := range jobs {
		entries = append(entries, progressEntry{
			UUID:   j.UUID,
			Status: j.Status.Public(),
			Error:  j.Error,
			Params: progressParams{PollID: j.PollID, FormatID: j.FormatID},
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) exportDone(w http.ResponseWriter, r *http.Request) {
	var req job.AcknowledgeRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.jobSvc.Acknowledge(r.Context(), req); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (h *handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	path, err := h.jobSvc.ExportFile(r.Context(), chi.URLParam(r, "file"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

func (h *handler) listPolls(w http.ResponseWriter, r *http.Request) {
	var req job.SearchPollsRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	polls, err := h.jobSvc.SearchPolls(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (h *handler) getPoll(w http.ResponseWriter, r *http.Request) {
	var req job.PollRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	p, err := h.jobSvc.GetPoll(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) pollStat(w http.ResponseWriter, r *http.Request) {
	var req job.PollRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	p, err := h.jobSvc.GetPoll(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pollStat{EndedCount: p.EndedCount})
}

func (h *handler) listCounters(w http.ResponseWriter, r *http.Request) {
	var req job.PollRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	counters, err := h.jobSvc.Counters(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func (h *handler) listBlocks(w http.ResponseWriter, r *http.Request) {
	var req job.PollRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	blocks, err := h.jobSvc.Blocks(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *handler) questionsByPoll(w http.ResponseWriter, r *http.Request) {
	h.questions(w, r, func(req *job.QuestionsRequest) { req.BlockID = 0 })
}

func (h *handler) questionsByBlock(w http.ResponseWriter, r *http.Request) {
	h.questions(w, r, func(req *job.QuestionsRequest) { req.PollID = 0 })
}

// questions serves both question endpoints; scope drops the id the endpoint
// does not take.
func (h *handler) questions(w http.ResponseWriter, r *http.Request, scope func(*job.QuestionsRequest)) {
	var req job.QuestionsRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	scope(&req)
	questions, err := h.jobSvc.Questions(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *handler) listConversions(w http.ResponseWriter, r *http.Request) {
	var req job.PollRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	convs, err := h.jobSvc.Conversions(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *handler) createLinks(w http.ResponseWriter, r *http.Request) {
	var req job.CreateLinksRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	links, err := h.jobSvc.CreateLinks(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	for i := range links {
		links[i].URL = scheme + "://" + r.Host + "/s/" + links[i].Token
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *handler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeAppError(w, apperror.New(apperror.NotFound, "not found"))
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
