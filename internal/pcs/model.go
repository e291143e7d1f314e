package pcs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Alert types emitted by the PCS webhook that the dashboard treats specially.
const (
	AlertDataMismatch       = "DataMismatch"
	AlertBloqueioDocumental = "BloqueioDocumental"
	AlertAcessoNegado       = "AcessoNegado"
	AlertAcessoPendente     = "AcessoPendente"
)

// Vessel is one port call as reported by the PCS. Each nested record is
// independently optional.
type Vessel struct {
	VesselID     string     `json:"vessel_id"`
	StatusResumo string     `json:"statusResumo"`
	Agency       *Agency    `json:"agency,omitempty"`
	Authority    *Authority `json:"authority,omitempty"`
	Pilotage     *Pilotage  `json:"pilotage,omitempty"`
	Terminal     *Terminal  `json:"terminal,omitempty"`
}

// Agency is the shipping agency's view of the call.
type Agency struct {
	ID                   string          `json:"id,omitempty"`
	NomeAgencia          string          `json:"nomeAgencia,omitempty"`
	ManifestoEntregue    *bool           `json:"manifestoEntregue,omitempty"`
	StatusDocumentacao   string          `json:"statusDocumentacao,omitempty"`
	DataEnvioInformacoes string          `json:"dataEnvioInformacoes,omitempty"`
	DocumentosAdicionais json.RawMessage `json:"documentosAdicionais,omitempty"`
}

// Authority is the port authority's movement authorization.
type Authority struct {
	ID               string `json:"id,omitempty"`
	TipoMovimentacao string `json:"tipoMovimentacao,omitempty"`
	DataSolicitacao  string `json:"dataSolicitacao,omitempty"`
	DataAutorizacao  string `json:"dataAutorizacao,omitempty"`
	Status           string `json:"status,omitempty"`
	Motivo           string `json:"motivo,omitempty"`
	Observacoes      string `json:"observacoes,omitempty"`
}

// Pilotage is the pilot maneuver record.
type Pilotage struct {
	ID              string `json:"id,omitempty"`
	Tipo            string `json:"tipo,omitempty"`
	DataSolicitacao string `json:"dataSolicitacao,omitempty"`
	DataExecucao    string `json:"dataExecucao,omitempty"`
	Status          string `json:"status,omitempty"`
	Motivo          string `json:"motivo,omitempty"`
	Observacoes     string `json:"observacoes,omitempty"`
}

// Terminal is the berth/terminal operation record.
type Terminal struct {
	ID                    string `json:"id,omitempty"`
	Terminal              string `json:"terminal,omitempty"`
	DataPrevistaAtracacao string `json:"dataPrevistaAtracacao,omitempty"`
	DataRealAtracacao     string `json:"dataRealAtracacao,omitempty"`
	TipoOperacao          string `json:"tipoOperacao,omitempty"`
	StatusOperacao        string `json:"statusOperacao,omitempty"`
	Observacoes           string `json:"observacoes,omitempty"`
}

// Alert is a structured warning tied to one vessel.
type Alert struct {
	Type               string         `json:"type"`
	VesselID           string         `json:"vessel_id"`
	StatusDocumentacao string         `json:"statusDocumentacao,omitempty"`
	Reason             string         `json:"reason,omitempty"`
	Suggestion         string         `json:"suggestion"`
	Fields             map[string]any `json:"fields,omitempty"`
}

// DeltaMin returns the timing delta carried by DataMismatch alerts.
// Numbers and numeric strings are accepted; anything else reports false.
func (a *Alert) DeltaMin() (float64, bool) {
	v, ok := a.Fields["deltaMin"]
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	// NaN and infinities are not usable deltas
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// KPIs are the headline counters the webhook may precompute.
type KPIs struct {
	TotalVessels  int `json:"totalVessels"`
	TotalAlerts   int `json:"totalAlerts"`
	TotalCritical int `json:"totalCritical"`
}

// Snapshot is one normalized PCS status response.
type Snapshot struct {
	Vessels     []Vessel       `json:"vessels"`
	Alerts      []Alert        `json:"alerts"`
	Counts      map[string]int `json:"counts"`
	KPIs        *KPIs          `json:"kpis,omitempty"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Vessel returns the vessel with the given id.
func (s *Snapshot) Vessel(id string) (*Vessel, bool) {
	for i := range s.Vessels {
		if s.Vessels[i].VesselID == id {
			return &s.Vessels[i], true
		}
	}
	return nil, false
}

// AlertsFor returns the alerts referencing the given vessel, in snapshot order.
func (s *Snapshot) AlertsFor(id string) []Alert {
	out := make([]Alert, 0)
	for _, a := range s.Alerts {
		if a.VesselID == id {
			out = append(out, a)
		}
	}
	return out
}

// Source is the display origin of a vessel: agency name, then terminal, then "PCS".
func (v *Vessel) Source() string {
	if v.Agency != nil && v.Agency.NomeAgencia != "" {
		return v.Agency.NomeAgencia
	}
	if v.Terminal != nil && v.Terminal.Terminal != "" {
		return v.Terminal.Terminal
	}
	return "PCS"
}
