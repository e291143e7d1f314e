package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

// handleListFavorites compares favorites with the current snapshot. When the
// snapshot cannot be loaded the favorites are still listed, all offline.
func (a *API) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	list, err := a.favs.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to list favorites")
		return
	}

	var snap *pcs.Snapshot
	if v, err := a.dash.View(r.Context()); err != nil {
		a.logger.Warn(r.Context(), "listing favorites without snapshot", "error", err)
	} else {
		snap = v.Snapshot
	}

	watched, summary := favorites.Watch(list, snap)
	writeJSON(w, http.StatusOK, map[string]any{
		"favorites": watched,
		"summary":   summary,
	})
}

func (a *API) handleClearFavorites(w http.ResponseWriter, r *http.Request) {
	if err := a.favs.Clear(r.Context()); err != nil {
		a.fail(w, r, err, "failed to clear favorites")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddFavorite watches a vessel from the current snapshot. It answers
// 201 for a new favorite and 200 when it was already watched.
func (a *API) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := a.dash.Vessel(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to load vessel", "vessel_id", id)
		return
	}
	fav, added, err := a.favs.Add(r.Context(), &d.Vessel)
	if err != nil {
		a.fail(w, r, err, "failed to add favorite", "vessel_id", id)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		a.logger.Info(r.Context(), "favorite added", "vessel_id", id)
	}
	writeJSON(w, status, fav)
}

func (a *API) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := a.favs.Remove(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to remove favorite", "vessel_id", id)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "favorite not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleFavorite removes a watched vessel, or adds it from the current
// snapshot. Removing does not need the snapshot, so a vessel that left the
// PCS can still be unwatched.
func (a *API) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	watched, err := a.favs.IsFavorite(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to read favorites", "vessel_id", id)
		return
	}
	if watched {
		if _, err := a.favs.Remove(r.Context(), id); err != nil {
			a.fail(w, r, err, "failed to remove favorite", "vessel_id", id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"vessel_id": id, "favorite": false})
		return
	}

	d, err := a.dash.Vessel(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to load vessel", "vessel_id", id)
		return
	}
	if _, _, err := a.favs.Add(r.Context(), &d.Vessel); err != nil {
		a.fail(w, r, err, "failed to add favorite", "vessel_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vessel_id": id, "favorite": true})
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	list, err := a.messages.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to list favorite messages")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var msg favorites.Message
	if !decodeBody(w, r, &msg) {
		return
	}
	if strings.TrimSpace(msg.ID) == "" || strings.TrimSpace(msg.Text) == "" {
		writeError(w, http.StatusBadRequest, "id and text are required")
		return
	}
	added, err := a.messages.Add(r.Context(), msg)
	if err != nil {
		a.fail(w, r, err, "failed to add favorite message", "message_id", msg.ID)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, msg)
}

func (a *API) handleRemoveMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := a.messages.Remove(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to remove favorite message", "message_id", id)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
