// Package api serves the dashboard's JSON API under /api/v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/pcsboard/internal/agent"
	"github.com/linnemanlabs/pcsboard/internal/authmw"
	"github.com/linnemanlabs/pcsboard/internal/dashboard"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
	"github.com/linnemanlabs/pcsboard/internal/webhook"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Dashboard is the read and refresh side of the dashboard service.
type Dashboard interface {
	View(ctx context.Context) (*dashboard.View, error)
	Refresh(ctx context.Context) (*dashboard.View, error)
	Overview(ctx context.Context) (*dashboard.Overview, error)
	Vessels(ctx context.Context, f pcs.VesselFilter) ([]dashboard.VesselSummary, error)
	Sources(ctx context.Context) ([]string, error)
	Vessel(ctx context.Context, id string) (*dashboard.VesselDetail, error)
	VesselAlerts(ctx context.Context, id string) ([]pcs.Alert, error)
	Category(ctx context.Context, name string) (pcs.Category, bool, error)
	Report(ctx context.Context) (*pcs.Report, error)
}

// Assistant answers chat questions and owns the conversation history.
type Assistant interface {
	Send(ctx context.Context, text string) (*agent.Exchange, error)
	History(ctx context.Context) ([]favorites.Message, error)
	Clear(ctx context.Context) ([]favorites.Message, error)
}

// Deps are the services behind the API. Assistant is optional; without it
// the conversation and agent routes are not mounted.
type Deps struct {
	Dashboard Dashboard
	Favorites *favorites.Vessels
	Messages  *favorites.Messages
	Assistant Assistant
	// Token, when set, is required as a bearer token on mutating routes.
	Token string
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	dash      Dashboard
	favs      *favorites.Vessels
	messages  *favorites.Messages
	assistant Assistant
	token     string
}

// New creates the API handler.
func New(logger log.Logger, d Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if d.Dashboard == nil {
		panic(xerrors.New("dashboard service is required"))
	}
	if d.Favorites == nil || d.Messages == nil {
		panic(xerrors.New("favorites stores are required"))
	}
	return &API{
		logger:    logger,
		dash:      d.Dashboard,
		favs:      d.Favorites,
		messages:  d.Messages,
		assistant: d.Assistant,
		token:     d.Token,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.Mutations(a.token))

		r.Get("/overview", a.handleOverview)
		r.Get("/kpis", a.handleKPIs)
		r.Get("/categories", a.handleCategories)
		r.Get("/categories/{name}", a.handleCategory)
		r.Get("/alerts/summary", a.handleAlertSummary)
		r.Get("/report", a.handleReport)
		r.Post("/refresh", a.handleRefresh)

		r.Route("/vessels", func(r chi.Router) {
			r.Get("/", a.handleVessels)
			r.Get("/sources", a.handleSources)
			r.Get("/{id}", a.handleVessel)
			r.Get("/{id}/alerts", a.handleVesselAlerts)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", a.handleListFavorites)
			r.Delete("/", a.handleClearFavorites)
			r.Put("/{id}", a.handleAddFavorite)
			r.Delete("/{id}", a.handleRemoveFavorite)
			r.Post("/{id}/toggle", a.handleToggleFavorite)
		})

		r.Route("/messages/favorites", func(r chi.Router) {
			r.Get("/", a.handleListMessages)
			r.Post("/", a.handleAddMessage)
			r.Delete("/{id}", a.handleRemoveMessage)
		})

		if a.assistant != nil {
			r.Get("/conversation", a.handleConversation)
			r.Delete("/conversation", a.handleClearConversation)
			r.Post("/agent/messages", a.handleAgentMessage)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error to a response. Upstream PCS failures become 502,
// missing vessels 404 and everything else 500.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	var fe *webhook.FetchError
	switch {
	case errors.Is(err, dashboard.ErrVesselNotFound):
		writeError(w, http.StatusNotFound, "vessel not found")
	case errors.Is(err, context.Canceled):
		// client went away
	case errors.As(err, &fe), errors.Is(err, context.DeadlineExceeded):
		a.logger.Error(r.Context(), err, msg, kv...)
		writeError(w, http.StatusBadGateway, "pcs webhook unavailable")
	default:
		a.logger.Error(r.Context(), err, msg, kv...)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}
