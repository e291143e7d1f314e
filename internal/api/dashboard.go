package api

import (
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := a.dash.Overview(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to build overview")
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *API) handleKPIs(w http.ResponseWriter, r *http.Request) {
	v, err := a.dash.View(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to load kpis")
		return
	}
	writeJSON(w, http.StatusOK, v.KPIs)
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	v, err := a.dash.View(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": v.Categories,
		"ranking":    v.Categories.ByCount(),
	})
}

func (a *API) handleCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// category names may contain "/", which arrives escaped
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	c, ok, err := a.dash.Category(r.Context(), name)
	if err != nil {
		a.fail(w, r, err, "failed to load category", "category", name)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, pcs.NamedCategory{Name: name, Category: c})
}

func (a *API) handleAlertSummary(w http.ResponseWriter, r *http.Request) {
	v, err := a.dash.View(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to load alert summary")
		return
	}
	writeJSON(w, http.StatusOK, v.Alerts)
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := a.dash.Report(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	v, err := a.dash.Refresh(r.Context())
	if err != nil {
		a.fail(w, r, err, "manual refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		FetchedAt time.Time         `json:"fetchedAt"`
		KPIs      pcs.DashboardKPIs `json:"kpis"`
	}{v.FetchedAt, v.KPIs})
}

func (a *API) handleVessels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := pcs.VesselFilter{
		Status:    q.Get("status"),
		Source:    q.Get("source"),
		Search:    q.Get("search"),
		AlertType: q.Get("alertType"),
	}
	list, err := a.dash.Vessels(r.Context(), f)
	if err != nil {
		a.fail(w, r, err, "failed to list vessels")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vessels": list, "total": len(list)})
}

func (a *API) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := a.dash.Sources(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to list sources")
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (a *API) handleVessel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("pcs.vessel.id", id))

	d, err := a.dash.Vessel(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to load vessel", "vessel_id", id)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleVesselAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("pcs.vessel.id", id))

	alerts, err := a.dash.VesselAlerts(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to load vessel alerts", "vessel_id", id)
		return
	}
	if alerts == nil {
		alerts = []pcs.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
