package pcs

import (
	"sort"
	"strings"
)

// VesselFilter narrows a vessel list. Empty fields match everything.
type VesselFilter struct {
	Status    string
	Source    string
	Search    string
	AlertType string
}

// FilterVessels applies f to the snapshot's vessels, preserving order.
func FilterVessels(s *Snapshot, f VesselFilter) []Vessel {
	var alertTypes map[string]map[string]struct{}
	if f.AlertType != "" {
		alertTypes = make(map[string]map[string]struct{})
		for _, a := range s.Alerts {
			if alertTypes[a.VesselID] == nil {
				alertTypes[a.VesselID] = make(map[string]struct{})
			}
			alertTypes[a.VesselID][a.Type] = struct{}{}
		}
	}

	source := strings.ToLower(f.Source)
	search := strings.ToLower(f.Search)

	out := make([]Vessel, 0, len(s.Vessels))
	for i := range s.Vessels {
		v := &s.Vessels[i]
		if f.Status != "" && v.StatusResumo != f.Status {
			continue
		}
		if source != "" && !matchesSource(v, source) {
			continue
		}
		if search != "" && !strings.Contains(searchText(v), search) {
			continue
		}
		if f.AlertType != "" {
			if _, ok := alertTypes[v.VesselID][f.AlertType]; !ok {
				continue
			}
		}
		out = append(out, *v)
	}
	return out
}

func matchesSource(v *Vessel, source string) bool {
	if v.Agency != nil && strings.Contains(strings.ToLower(v.Agency.NomeAgencia), source) {
		return true
	}
	if v.Terminal != nil && strings.Contains(strings.ToLower(v.Terminal.Terminal), source) {
		return true
	}
	if v.Authority != nil && strings.Contains(strings.ToLower(v.Authority.Status), source) {
		return true
	}
	return false
}

func searchText(v *Vessel) string {
	parts := []string{v.VesselID, v.StatusResumo}
	if v.Agency != nil {
		parts = append(parts, v.Agency.NomeAgencia)
	}
	if v.Terminal != nil {
		parts = append(parts, v.Terminal.Terminal)
	}
	if v.Authority != nil {
		parts = append(parts, v.Authority.TipoMovimentacao)
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToLower(strings.Join(nonEmpty, " "))
}

// Sources returns the sorted, unique agency and terminal names in the snapshot.
func Sources(s *Snapshot) []string {
	seen := make(map[string]struct{})
	for _, v := range s.Vessels {
		if v.Agency != nil && v.Agency.NomeAgencia != "" {
			seen[v.Agency.NomeAgencia] = struct{}{}
		}
		if v.Terminal != nil && v.Terminal.Terminal != "" {
			seen[v.Terminal.Terminal] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
