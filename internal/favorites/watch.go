package favorites

import (
	"strings"

	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

// Watched is a favorite compared against the current snapshot.
type Watched struct {
	Vessel
	Online        bool        `json:"online"`
	CurrentStatus string      `json:"currentStatus,omitempty"`
	StatusChanged bool        `json:"statusChanged"`
	Display       pcs.Display `json:"statusDisplay"`
}

// WatchSummary counts watched vessels by state.
type WatchSummary struct {
	Total     int `json:"total"`
	Online    int `json:"online"`
	OK        int `json:"ok"`
	Attention int `json:"attention"`
}

// Watch compares each favorite with its vessel in snap. Vessels missing from
// the snapshot are offline and keep their saved status for display.
func Watch(favs []Vessel, snap *pcs.Snapshot) ([]Watched, WatchSummary) {
	out := make([]Watched, 0, len(favs))
	sum := WatchSummary{Total: len(favs)}

	for _, fav := range favs {
		w := Watched{Vessel: fav, Display: pcs.StatusDisplay(fav.Status)}
		if snap != nil {
			if v, ok := snap.Vessel(fav.VesselID); ok {
				w.Online = true
				w.CurrentStatus = v.StatusResumo
				w.StatusChanged = v.StatusResumo != fav.Status
				w.Display = pcs.StatusDisplay(v.StatusResumo)
			}
		}
		if w.Online {
			sum.Online++
			switch {
			case w.CurrentStatus == "ok":
				sum.OK++
			case w.CurrentStatus != "" && !strings.Contains(w.CurrentStatus, "ok"):
				sum.Attention++
			}
		}
		out = append(out, w)
	}
	return out, sum
}
