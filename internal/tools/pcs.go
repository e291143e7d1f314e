package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/pcsboard/internal/dashboard"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

// Dashboard is the read side of the dashboard service the PCS tools query.
type Dashboard interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
	Vessel(ctx context.Context, id string) (*dashboard.VesselDetail, error)
	Category(ctx context.Context, name string) (pcs.Category, bool, error)
}

// RegisterPCS adds the PCS lookups backed by d to r.
func RegisterPCS(r *Registry, d Dashboard) {
	r.Register(&PCSOverview{dash: d})
	r.Register(&PCSVessel{dash: d})
	r.Register(&PCSCategory{dash: d})
}

// PCSOverview reports KPIs, the category ranking and alert counts.
type PCSOverview struct {
	dash Dashboard
}

func (p *PCSOverview) Name() string { return "pcs_overview" }

func (p *PCSOverview) Description() string {
	return `Summarize the current port call snapshot: vessel and alert KPIs, vessel categories ranked by size
and alert counts by type. Use this first to understand the overall situation of the port.`
}

func (p *PCSOverview) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (p *PCSOverview) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	ov, err := p.dash.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("load overview: %w", err)
	}
	return json.Marshal(struct {
		FetchedAt time.Time           `json:"fetchedAt"`
		KPIs      pcs.DashboardKPIs   `json:"kpis"`
		Ranking   []pcs.NamedCategory `json:"categories"`
		Alerts    pcs.AlertSummary    `json:"alertSummary"`
	}{ov.FetchedAt, ov.KPIs, ov.Ranking, ov.Alerts})
}

// PCSVessel returns one vessel with its agency, authority, pilotage and
// terminal records and its alerts.
type PCSVessel struct {
	dash Dashboard
}

func (p *PCSVessel) Name() string { return "pcs_vessel" }

func (p *PCSVessel) Description() string {
	return `Look up a single vessel by its vessel_id. Returns the status summary, the agency, port authority,
pilotage and terminal records, the categories the vessel is in and its open alerts.`
}

func (p *PCSVessel) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "vessel_id": {
                "type": "string",
                "description": "Vessel identifier as shown on the dashboard, e.g. MSC-ANNA"
            }
        },
        "required": ["vessel_id"]
    }`)
}

func (p *PCSVessel) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input struct {
		VesselID string `json:"vessel_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	id := strings.TrimSpace(input.VesselID)
	if id == "" {
		return nil, errors.New("vessel_id is required")
	}
	d, err := p.dash.Vessel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("vessel %q: %w", id, err)
	}
	return json.Marshal(d)
}

// PCSCategory lists the vessels in one category.
type PCSCategory struct {
	dash Dashboard
}

func (p *PCSCategory) Name() string { return "pcs_category" }

func (p *PCSCategory) Description() string {
	return `List the vessel ids in one dashboard category, for example "Negado (acesso)" or
"Pendente/irregular (documentos)". Category names come from pcs_overview.`
}

func (p *PCSCategory) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "name": {
                "type": "string",
                "description": "Exact category name"
            }
        },
        "required": ["name"]
    }`)
}

func (p *PCSCategory) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	c, _, err := p.dash.Category(ctx, input.Name)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", input.Name, err)
	}
	if c.Vessels == nil {
		c.Vessels = []string{}
	}
	return json.Marshal(pcs.NamedCategory{Name: input.Name, Category: c})
}
