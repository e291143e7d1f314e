package pcs

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Category names produced by Categorize.
const (
	CategoryNormal                   = "Operação normal"
	CategoryAwaitingAuthorizationDoc = "Aguardando autorização (doc)"
	CategoryPendingDocuments         = "Pendente/irregular (documentos)"
	CategoryCancelledDocumentation   = "Cancelado (documentação)"
	CategoryFiscalProblem            = "Problema fiscal"
	CategoryAwaitingDocumentationOp  = "Aguardando documentação (operação)"
	CategoryAwaitingVessel           = "Aguardando navio"
	CategoryPartialOperation         = "Operação parcial"
	CategoryDelay                    = "Atraso/retardo"
	CategoryCancelledOperation       = "Cancelado (operação)"
	CategoryPendingAccess            = "Pendente (acesso)"
	CategoryDeniedAccess             = "Negado (acesso)"
	CategoryPendingManeuver          = "Pendente (manobra)"
	CategoryCancelledManeuver        = "Cancelado (manobra)"
	CategoryEmergency                = "Emergência/contingência"
)

// minorDeltaMinutes is the DataMismatch delta below which a timing
// discrepancy counts as noise.
const minorDeltaMinutes = 45

const emergencyKeyword = "emergência"

// Category is a named bucket of vessel ids.
type Category struct {
	Count   int      `json:"count"`
	Vessels []string `json:"vessels"`
}

// NamedCategory pairs a category with its name for ordered views.
type NamedCategory struct {
	Name string `json:"name"`
	Category
}

// Categories is an insertion-ordered set of categories. The zero value is empty
// and ready to use.
type Categories struct {
	names   []string
	byName  map[string]*Category
	members map[string]map[string]struct{}
}

// Add puts vesselID in the named category. Adding an id already present is a no-op.
func (c *Categories) Add(name, vesselID string) {
	if c.byName == nil {
		c.byName = make(map[string]*Category)
		c.members = make(map[string]map[string]struct{})
	}
	cat, ok := c.byName[name]
	if !ok {
		cat = &Category{Vessels: []string{}}
		c.byName[name] = cat
		c.members[name] = make(map[string]struct{})
		c.names = append(c.names, name)
	}
	if _, dup := c.members[name][vesselID]; dup {
		return
	}
	c.members[name][vesselID] = struct{}{}
	cat.Vessels = append(cat.Vessels, vesselID)
	cat.Count = len(cat.Vessels)
}

// Len is the number of categories.
func (c *Categories) Len() int { return len(c.names) }

// Names returns category names in first-insertion order.
func (c *Categories) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Get returns a copy of the named category.
func (c *Categories) Get(name string) (Category, bool) {
	cat, ok := c.byName[name]
	if !ok {
		return Category{}, false
	}
	return Category{Count: cat.Count, Vessels: append([]string(nil), cat.Vessels...)}, true
}

// Count is the vessel count of the named category, 0 when absent.
func (c *Categories) Count(name string) int {
	if cat, ok := c.byName[name]; ok {
		return cat.Count
	}
	return 0
}

// Has reports whether vesselID is a member of the named category.
func (c *Categories) Has(name, vesselID string) bool {
	_, ok := c.members[name][vesselID]
	return ok
}

// Map returns a plain copy keyed by name.
func (c *Categories) Map() map[string]Category {
	out := make(map[string]Category, len(c.names))
	for _, n := range c.names {
		out[n], _ = c.Get(n)
	}
	return out
}

// ByCount returns the categories sorted by count descending. Ties keep
// insertion order.
func (c *Categories) ByCount() []NamedCategory {
	out := make([]NamedCategory, 0, len(c.names))
	for _, n := range c.names {
		cat, _ := c.Get(n)
		out = append(out, NamedCategory{Name: n, Category: cat})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// MarshalJSON encodes the categories as a JSON object in insertion order.
func (c *Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.byName[n])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// rule appends a vessel to category when match holds.
type rule struct {
	category string
	match    func(v *Vessel) bool
}

// rules are evaluated in order for every vessel that has alerts and is not
// in normal operation. A vessel may satisfy several.
var rules = []rule{
	{CategoryAwaitingAuthorizationDoc, agencyDocIs("aguardando_autorizacao")},
	{CategoryPendingDocuments, agencyDocIs("pendente_manifesto", "incompleto")},
	{CategoryCancelledDocumentation, agencyDocIs("cancelado")},
	{CategoryFiscalProblem, agencyDocIs("problema_fiscal")},
	{CategoryAwaitingDocumentationOp, terminalOpIs("aguardando_documentacao")},
	{CategoryAwaitingVessel, terminalOpIs("aguardando_navio")},
	{CategoryPartialOperation, terminalOpIs("parcial")},
	{CategoryDelay, terminalOpIs("concluida_com_atraso")},
	{CategoryCancelledOperation, terminalOpIs("cancelada")},
	{CategoryPendingAccess, authorityStatusIs("pendente")},
	{CategoryDeniedAccess, authorityStatusIs("negado")},
	{CategoryPendingManeuver, pilotageStatusIs("pendente")},
	{CategoryCancelledManeuver, pilotageStatusIs("cancelada")},
	{CategoryEmergency, mentionsEmergency},
}

// Categorize buckets vessels into operational-status categories.
//
// Vessels whose alerts are only minor DataMismatch noise, or that have no
// alerts and a fully completed call, go to CategoryNormal and nothing else.
// Every other vessel with at least one alert is matched against the status
// rules and may land in several categories. Vessels without alerts that are
// not complete are left out entirely. Alerts for unknown vessel ids are
// ignored.
func Categorize(vessels []Vessel, alerts []Alert) *Categories {
	cats := &Categories{}

	byVessel := make(map[string][]*Alert, len(alerts))
	for i := range alerts {
		a := &alerts[i]
		byVessel[a.VesselID] = append(byVessel[a.VesselID], a)
	}

	for i := range vessels {
		v := &vessels[i]
		va := byVessel[v.VesselID]
		if onlyMinorTimingIssues(va) || (len(va) == 0 && completedCall(v)) {
			cats.Add(CategoryNormal, v.VesselID)
		}
	}

	for i := range vessels {
		v := &vessels[i]
		if cats.Has(CategoryNormal, v.VesselID) || len(byVessel[v.VesselID]) == 0 {
			continue
		}
		for _, r := range rules {
			if r.match(v) {
				cats.Add(r.category, v.VesselID)
			}
		}
	}

	return cats
}

func onlyMinorTimingIssues(alerts []*Alert) bool {
	if len(alerts) == 0 {
		return false
	}
	for _, a := range alerts {
		if a.Type != AlertDataMismatch {
			return false
		}
		d, ok := a.DeltaMin()
		if !ok || d >= minorDeltaMinutes {
			return false
		}
	}
	return true
}

func completedCall(v *Vessel) bool {
	if v.Authority == nil || v.Pilotage == nil || v.Terminal == nil {
		return false
	}
	op := v.Terminal.StatusOperacao
	return v.Authority.Status == "autorizado" &&
		v.Pilotage.Status == "realizada" &&
		(op == "concluida" || op == "concluida_com_atraso")
}

func agencyDocIs(values ...string) func(*Vessel) bool {
	return func(v *Vessel) bool {
		return v.Agency != nil && oneOf(v.Agency.StatusDocumentacao, values)
	}
}

func terminalOpIs(values ...string) func(*Vessel) bool {
	return func(v *Vessel) bool {
		return v.Terminal != nil && oneOf(v.Terminal.StatusOperacao, values)
	}
}

func authorityStatusIs(values ...string) func(*Vessel) bool {
	return func(v *Vessel) bool {
		return v.Authority != nil && oneOf(v.Authority.Status, values)
	}
}

func pilotageStatusIs(values ...string) func(*Vessel) bool {
	return func(v *Vessel) bool {
		return v.Pilotage != nil && oneOf(v.Pilotage.Status, values)
	}
}

func mentionsEmergency(v *Vessel) bool {
	var texts []string
	if v.Authority != nil {
		texts = append(texts, v.Authority.Motivo, v.Authority.Observacoes)
	}
	if v.Pilotage != nil {
		texts = append(texts, v.Pilotage.Motivo)
	}
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), emergencyKeyword) {
			return true
		}
	}
	return false
}

func oneOf(s string, values []string) bool {
	if s == "" {
		return false
	}
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
