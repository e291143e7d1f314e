package pcs

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DashboardKPIs are the headline tiles of the dashboard.
type DashboardKPIs struct {
	TotalVessels   int `json:"totalVessels"`
	TotalAlerts    int `json:"totalAlerts"`
	CriticalAlerts int `json:"criticalAlerts"`
	NormalVessels  int `json:"normalVessels"`
	Sources        int `json:"sources"`
}

// IsCritical reports whether an alert type counts towards the critical KPI.
func IsCritical(alertType string) bool {
	return alertType == AlertAcessoNegado || alertType == AlertBloqueioDocumental
}

// ComputeKPIs derives the dashboard tiles. Non-zero counters precomputed by
// the webhook take precedence over locally derived ones.
func ComputeKPIs(s *Snapshot, cats *Categories) DashboardKPIs {
	k := DashboardKPIs{
		TotalVessels: len(s.Vessels),
		TotalAlerts:  len(s.Alerts),
		Sources:      len(s.Counts),
	}
	for _, a := range s.Alerts {
		if IsCritical(a.Type) {
			k.CriticalAlerts++
		}
	}
	if s.KPIs != nil {
		if s.KPIs.TotalVessels != 0 {
			k.TotalVessels = s.KPIs.TotalVessels
		}
		if s.KPIs.TotalAlerts != 0 {
			k.TotalAlerts = s.KPIs.TotalAlerts
		}
		if s.KPIs.TotalCritical != 0 {
			k.CriticalAlerts = s.KPIs.TotalCritical
		}
	}
	if cats != nil {
		k.NormalVessels = cats.Count(CategoryNormal)
	}
	return k
}

// AlertTypeCount is one row of the alert-type overview.
type AlertTypeCount struct {
	Type    string  `json:"type"`
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// AlertSummary aggregates alerts by type.
type AlertSummary struct {
	Total int              `json:"total"`
	Types []AlertTypeCount `json:"types"`
}

// SummarizeAlerts counts alerts per type, sorted by count descending then type.
func SummarizeAlerts(alerts []Alert) AlertSummary {
	counts := make(map[string]int)
	for _, a := range alerts {
		counts[a.Type]++
	}
	out := AlertSummary{Total: len(alerts), Types: make([]AlertTypeCount, 0, len(counts))}
	for t, n := range counts {
		row := AlertTypeCount{Type: t, Label: DisplayLabel(t), Count: n}
		if out.Total > 0 {
			row.Percent = float64(n) * 100 / float64(out.Total)
		}
		out.Types = append(out.Types, row)
	}
	sort.Slice(out.Types, func(i, j int) bool {
		if out.Types[i].Count != out.Types[j].Count {
			return out.Types[i].Count > out.Types[j].Count
		}
		return out.Types[i].Type < out.Types[j].Type
	})
	return out
}

var upperRe = regexp.MustCompile(`([A-Z])`)

// DisplayLabel splits a CamelCase alert type into words ("DataMismatch" -> "Data Mismatch").
func DisplayLabel(alertType string) string {
	return strings.TrimSpace(upperRe.ReplaceAllString(alertType, " $1"))
}

var summaryEntryRe = regexp.MustCompile(`^(.+?):\s*(\d+)$`)

// ParseAlertSummary parses "DataMismatch: 7 · BloqueioDocumental: 5" into counts.
// Malformed entries are skipped.
func ParseAlertSummary(text string) map[string]int {
	out := make(map[string]int)
	for _, entry := range strings.Split(text, "·") {
		m := summaryEntryRe.FindStringSubmatch(strings.TrimSpace(entry))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out[strings.TrimSpace(m[1])] = n
	}
	return out
}
