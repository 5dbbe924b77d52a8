package server

import (
	"encoding/json"
	"net/http"

	"github.com/knoguchi/docmemory/internal/apperr"
	"github.com/knoguchi/docmemory/internal/auth"
	"github.com/knoguchi/docmemory/internal/session"
)

// Handlers implements spec §6's seven HTTP endpoints over a session.Engine.
type Handlers struct {
	engine *session.Engine
	auth   *auth.SessionAuth
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(engine *session.Engine, sessionAuth *auth.SessionAuth) *Handlers {
	return &Handlers{engine: engine, auth: sessionAuth}
}

type startRequest struct {
	Query string `json:"query"`
}

type startResponse struct {
	session.View
	Token string `json:"token"`
}

type pickRequest struct {
	ClusterID int `json:"cluster_id"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type backtrackRequest struct {
	NodeID string `json:"node_id"`
}

// Start handles POST /v1/search: spec §4.7's start(query) event.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, apperr.New(apperr.InputInvalid, "query is required"))
		return
	}

	view, err := h.engine.Start(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.IssueToken(view.SessionID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "failed to issue session token", err))
		return
	}

	writeJSON(w, http.StatusOK, startResponse{View: view, Token: token})
}

// Get handles GET /v1/session/{sessionID}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id := pathSessionID(r)
	view, err := h.engine.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Pick handles POST /v1/session/{sessionID}/pick: spec §4.7's pick(cid) event.
func (h *Handlers) Pick(w http.ResponseWriter, r *http.Request) {
	id := pathSessionID(r)
	var req pickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InputInvalid, "invalid request body"))
		return
	}

	view, err := h.engine.Pick(r.Context(), id, req.ClusterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Help handles POST /v1/session/{sessionID}/help: spec §4.7's help() event.
func (h *Handlers) Help(w http.ResponseWriter, r *http.Request) {
	id := pathSessionID(r)
	view, err := h.engine.Help(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Answer handles POST /v1/session/{sessionID}/answer: spec §4.7's answer(a) event.
func (h *Handlers) Answer(w http.ResponseWriter, r *http.Request) {
	id := pathSessionID(r)
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		writeError(w, apperr.New(apperr.InputInvalid, "answer is required"))
		return
	}

	view, err := h.engine.Answer(r.Context(), id, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Backtrack handles POST /v1/session/{sessionID}/backtrack: spec §4.7's
// backtrack(node_id) event.
func (h *Handlers) Backtrack(w http.ResponseWriter, r *http.Request) {
	id := pathSessionID(r)
	var req backtrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NodeID == "" {
		writeError(w, apperr.New(apperr.InputInvalid, "node_id is required"))
		return
	}

	view, err := h.engine.Backtrack(r.Context(), id, req.NodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /v1/session/{sessionID}. Always succeeds, per spec §6.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathSessionID(r)
	h.engine.Delete(id)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), errorBody{Error: err.Error(), Kind: kind.String()})
}
