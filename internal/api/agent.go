package api

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/pcsboard/internal/agent"
)

func (a *API) handleConversation(w http.ResponseWriter, r *http.Request) {
	history, err := a.assistant.History(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	history, err := a.assistant.Clear(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to clear conversation")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	ex, err := a.assistant.Send(r.Context(), in.Message)
	if errors.Is(err, agent.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.fail(w, r, err, "failed to store conversation")
		return
	}
	writeJSON(w, http.StatusOK, ex)
}
