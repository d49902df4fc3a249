package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/thiagokokada/gitrelay/internal/git"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/socket", s.handleSocket)
	s.mux.HandleFunc("GET /api/credentials", s.handleCredentials)
	s.mux.HandleFunc("GET /api/query/{kind}", s.handleQuery)
	s.mux.HandleFunc("POST /api/commit", s.handleCommit)
	s.mux.HandleFunc("POST /api/fetch", s.handleFetch)
	s.mux.HandleFunc("POST /api/push", s.handlePush)
	s.mux.HandleFunc("POST /api/merge", s.handleMerge)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/checkout", s.handleCheckout)
	s.mux.HandleFunc("POST /api/cherry-pick", s.handleCherryPick)
	s.mux.HandleFunc("POST /api/init", s.handleInit)
	s.mux.HandleFunc("POST /api/clone", s.handleClone)
	s.mux.HandleFunc("POST /api/branches", s.handleCreateBranch)
	s.mux.HandleFunc("POST /api/branches/delete", s.handleDeleteBranch)
	s.mux.HandleFunc("POST /api/tags", s.handleCreateTag)
	s.mux.HandleFunc("POST /api/tags/delete", s.handleDeleteTag)
	s.mux.HandleFunc("POST /api/tags/delete-remote", s.handleDeleteRemoteTag)
	s.mux.HandleFunc("POST /api/merge/continue", s.handleMergeContinue)
	s.mux.HandleFunc("POST /api/merge/abort", s.handleMergeAbort)
	s.mux.HandleFunc("POST /api/rebase", s.handleRebase)
	s.mux.HandleFunc("POST /api/rebase/continue", s.handleRebaseContinue)
	s.mux.HandleFunc("POST /api/rebase/abort", s.handleRebaseAbort)
	s.mux.HandleFunc("POST /api/discard", s.handleDiscard)
	s.mux.HandleFunc("POST /api/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /api/submodules", s.handleAddSubmodule)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": apiError{Code: code, Message: strings.TrimSpace(message)},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.Any("error", err),
		)
	}
	writeAPIError(w, status, code, err.Error())
}

func writeResult(w http.ResponseWriter, r *http.Request, res any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func writeDone(w http.ResponseWriter, r *http.Request, err error) {
	writeResult(w, r, true, err)
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var body T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid-argument", "invalid request body: "+err.Error())
		return body, false
	}
	return body, true
}

// requestContext detaches git work from the request so a client hanging up
// does not abandon a command that already holds its repository.
func requestContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.Len(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" && git.RequiresPath(kind) {
		writeAPIError(w, http.StatusBadRequest, "invalid-argument", "path not specified")
		return
	}
	opts := git.QueryOptions{File: q.Get("file"), ConnID: q.Get("connectionId")}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "index": &opts.StashIndex} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid-argument", name+": "+err.Error())
			return
		}
		*dst = n
	}
	if v := q.Get("numstat"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid-argument", "numstat: "+err.Error())
			return
		}
		opts.Numstat = b
	}
	res, err := s.git.Query(requestContext(r), kind, path, opts)
	writeResult(w, r, res, err)
}

// handleCredentials is called by the credential helper git spawns. It blocks
// until the connection answers or goes away.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	connID := r.URL.Query().Get("connectionId")
	if connID == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid-argument", "connectionId not specified")
		return
	}
	creds, err := s.relay.Request(r.Context(), connID)
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

type commitRequest struct {
	Path    string   `json:"path"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
	Amend   bool     `json:"amend"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[commitRequest](w, r)
	if !ok {
		return
	}
	err := s.git.Commit(requestContext(r), req.Path, git.CommitOptions{
		Message: req.Message,
		Files:   req.Files,
		Amend:   req.Amend,
	})
	writeDone(w, r, err)
}

type fetchRequest struct {
	Path         string `json:"path"`
	ConnectionID string `json:"connectionId"`
	Ref          string `json:"ref"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[fetchRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Fetch(requestContext(r), req.Path, req.ConnectionID, req.Ref))
}

type pushRequest struct {
	Path         string `json:"path"`
	ConnectionID string `json:"connectionId"`
	Remote       string `json:"remote"`
	Local        string `json:"local"`
	RemoteBranch string `json:"remoteBranch"`
	Force        bool   `json:"force"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[pushRequest](w, r)
	if !ok {
		return
	}
	err := s.git.Push(requestContext(r), req.Path, req.ConnectionID, git.PushOptions{
		Remote:       req.Remote,
		Local:        req.Local,
		RemoteBranch: req.RemoteBranch,
		Force:        req.Force,
	})
	writeDone(w, r, err)
}

type refRequest struct {
	Path string `json:"path"`
	Ref  string `json:"ref"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Merge(requestContext(r), req.Path, req.Ref, s.opts.NoFFMerge))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Reset(requestContext(r), req.Path, req.Ref))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Checkout(requestContext(r), req.Path, req.Ref))
}

func (s *Server) handleCherryPick(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.CherryPick(requestContext(r), req.Path, req.Ref))
}

type initRequest struct {
	Path string `json:"path"`
	Bare bool   `json:"bare"`
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[initRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Init(requestContext(r), req.Path, req.Bare))
}

// cloneRequest clones URL into Dest, relative to the directory Path.
type cloneRequest struct {
	Path         string `json:"path"`
	ConnectionID string `json:"connectionId"`
	URL          string `json:"url"`
	Dest         string `json:"dest"`
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[cloneRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Clone(requestContext(r), req.Path, req.ConnectionID, req.URL, req.Dest))
}

type refCreateRequest struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	StartPoint string `json:"startPoint"`
}

type refDeleteRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refCreateRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.CreateBranch(requestContext(r), req.Path, req.Name, req.StartPoint))
}

func (s *Server) handleDeleteBranch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refDeleteRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.DeleteBranch(requestContext(r), req.Path, req.Name))
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refCreateRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.CreateTag(requestContext(r), req.Path, req.Name, req.StartPoint))
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refDeleteRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.DeleteTag(requestContext(r), req.Path, req.Name))
}

type remoteTagRequest struct {
	Path         string `json:"path"`
	ConnectionID string `json:"connectionId"`
	Remote       string `json:"remote"`
	Name         string `json:"name"`
}

func (s *Server) handleDeleteRemoteTag(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[remoteTagRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.DeleteRemoteTag(requestContext(r), req.Path, req.ConnectionID, req.Remote, req.Name))
}

type mergeContinueRequest struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (s *Server) handleMergeContinue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[mergeContinueRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.MergeContinue(requestContext(r), req.Path, req.Message))
}

type pathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleMergeAbort(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[pathRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.MergeAbort(requestContext(r), req.Path))
}

func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[refRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Rebase(requestContext(r), req.Path, req.Ref))
}

func (s *Server) handleRebaseContinue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[pathRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.RebaseContinue(requestContext(r), req.Path))
}

func (s *Server) handleRebaseAbort(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[pathRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.RebaseAbort(requestContext(r), req.Path))
}

type filesRequest struct {
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[filesRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Discard(requestContext(r), req.Path, req.Files))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[filesRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.Resolve(requestContext(r), req.Path, req.Files))
}

type submoduleRequest struct {
	Path         string `json:"path"`
	ConnectionID string `json:"connectionId"`
	URL          string `json:"url"`
	SubPath      string `json:"subPath"`
}

func (s *Server) handleAddSubmodule(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[submoduleRequest](w, r)
	if !ok {
		return
	}
	writeDone(w, r, s.git.AddSubmodule(requestContext(r), req.Path, req.ConnectionID, req.URL, req.SubPath))
}
