// Package githubtest provides an in-memory GitHub Actions REST API for tests.
package githubtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

type Run struct {
	ID         int64
	Path       string
	Conclusion string
	CreatedAt  time.Time
	// PendingPolls is the number of single-run lookups answered with in_progress before the run completes.
	PendingPolls int
}

type Repository struct {
	DefaultBranch string
	// Branches maps a branch name to the committer date of its head commit.
	Branches map[string]time.Time
	// Runs are ordered newest first, as GitHub lists them.
	Runs []*Run
	// DispatchStatus overrides the 204 answer of the dispatch endpoint.
	DispatchStatus int
	// OnDispatch is called for every accepted dispatch, typically to enqueue a new run.
	OnDispatch func(repository *Repository, ref, workflow string)
}

type Dispatch struct {
	Repository string
	Workflow   string
	Ref        string
}

type Server struct {
	*httptest.Server

	token        string
	mu           sync.Mutex
	repositories map[string]*Repository
	dispatches   []Dispatch
}

func NewServer(token string, repositories map[string]*Repository) *Server {
	s := &Server{
		token:        token,
		repositories: repositories,
	}
	r := chi.NewRouter()
	r.Use(s.authorize)
	r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
		r.Get("/", s.getRepository)
		r.Get("/branches/{branch}", s.getBranch)
		r.Get("/actions/runs", s.listRuns)
		r.Get("/actions/runs/{runID}", s.getRun)
		r.Post("/actions/workflows/{workflow}/dispatches", s.dispatch)
	})
	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) Dispatches() []Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Dispatch(nil), s.dispatches...)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token "+s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		if r.Header.Get("Accept") != "application/vnd.github+json" || r.Header.Get("X-GitHub-Api-Version") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing api headers"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) repository(w http.ResponseWriter, r *http.Request) (*Repository, bool) {
	repository, ok := s.repositories[chi.URLParam(r, "owner")+"/"+chi.URLParam(r, "repo")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
	return repository, ok
}

func (s *Server) getRepository(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repository, ok := s.repository(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"default_branch": repository.DefaultBranch})
}

func (s *Server) getBranch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repository, ok := s.repository(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "branch")
	date, ok := repository.Branches[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Branch not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name": name,
		"commit": map[string]any{
			"commit": map[string]any{
				"committer": map[string]any{"date": date.Format(time.RFC3339)},
			},
		},
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repository, ok := s.repository(w, r)
	if !ok {
		return
	}
	page := repository.Runs
	if len(page) > 30 {
		page = page[:30]
	}
	runs := make([]map[string]any, 0, len(page))
	for _, run := range page {
		runs = append(runs, runJSON(run, run.PendingPolls == 0))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_count":   len(repository.Runs),
		"workflow_runs": runs,
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repository, ok := s.repository(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	for _, run := range repository.Runs {
		if run.ID != id {
			continue
		}
		completed := run.PendingPolls == 0
		if !completed {
			run.PendingPolls--
		}
		writeJSON(w, http.StatusOK, runJSON(run, completed))
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repository, ok := s.repository(w, r)
	if !ok {
		return
	}
	var body struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Ref == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "ref is required"})
		return
	}
	if repository.DispatchStatus != 0 {
		w.WriteHeader(repository.DispatchStatus)
		return
	}
	workflow := chi.URLParam(r, "workflow")
	s.dispatches = append(s.dispatches, Dispatch{
		Repository: chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo"),
		Workflow:   workflow,
		Ref:        body.Ref,
	})
	if repository.OnDispatch != nil {
		repository.OnDispatch(repository, body.Ref, workflow)
	}
	w.WriteHeader(http.StatusNoContent)
}

func runJSON(run *Run, completed bool) map[string]any {
	result := map[string]any{
		"id":         run.ID,
		"path":       run.Path,
		"status":     "in_progress",
		"conclusion": nil,
		"created_at": run.CreatedAt.Format(time.RFC3339),
	}
	if completed {
		result["status"] = "completed"
		result["conclusion"] = run.Conclusion
	}
	return result
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
