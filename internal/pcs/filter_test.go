package pcs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func filterFixture() *Snapshot {
	return &Snapshot{
		Vessels: []Vessel{
			{VesselID: "MSC-ANNA", StatusResumo: "ok", Agency: &Agency{NomeAgencia: "Wilson Sons"}},
			{VesselID: "CMA-LYON", StatusResumo: "bloqueado", Terminal: &Terminal{Terminal: "Tecon Santos"}},
			{VesselID: "MAERSK-KIEL", StatusResumo: "bloqueado", Authority: &Authority{Status: "negado", TipoMovimentacao: "atracacao"}},
		},
		Alerts: []Alert{
			{Type: AlertAcessoNegado, VesselID: "MAERSK-KIEL"},
			{Type: AlertDataMismatch, VesselID: "CMA-LYON"},
		},
	}
}

func ids(vs []Vessel) []string {
	out := []string{}
	for _, v := range vs {
		out = append(out, v.VesselID)
	}
	return out
}

func TestFilterVessels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    VesselFilter
		want []string
	}{
		{"no filter", VesselFilter{}, []string{"MSC-ANNA", "CMA-LYON", "MAERSK-KIEL"}},
		{"status", VesselFilter{Status: "bloqueado"}, []string{"CMA-LYON", "MAERSK-KIEL"}},
		{"source agency", VesselFilter{Source: "wilson"}, []string{"MSC-ANNA"}},
		{"source terminal", VesselFilter{Source: "TECON"}, []string{"CMA-LYON"}},
		{"source authority status", VesselFilter{Source: "negado"}, []string{"MAERSK-KIEL"}},
		{"search id", VesselFilter{Search: "lyon"}, []string{"CMA-LYON"}},
		{"search movement type", VesselFilter{Search: "atracacao"}, []string{"MAERSK-KIEL"}},
		{"search status", VesselFilter{Search: "OK"}, []string{"MSC-ANNA"}},
		{"alert type", VesselFilter{AlertType: AlertDataMismatch}, []string{"CMA-LYON"}},
		{"combined no match", VesselFilter{Status: "ok", AlertType: AlertAcessoNegado}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FilterVessels(filterFixture(), tt.f)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSources(t *testing.T) {
	t.Parallel()

	s := filterFixture()
	s.Vessels = append(s.Vessels, Vessel{VesselID: "X", Agency: &Agency{NomeAgencia: "Wilson Sons"}})

	want := []string{"Tecon Santos", "Wilson Sons"}
	if diff := cmp.Diff(want, Sources(s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotLookups(t *testing.T) {
	t.Parallel()

	s := filterFixture()
	v, ok := s.Vessel("CMA-LYON")
	if !ok || v.VesselID != "CMA-LYON" {
		t.Fatalf("Vessel lookup = %v, %v", v, ok)
	}
	if _, ok := s.Vessel("nope"); ok {
		t.Error("expected missing vessel")
	}
	if got := s.AlertsFor("MAERSK-KIEL"); len(got) != 1 || got[0].Type != AlertAcessoNegado {
		t.Errorf("AlertsFor = %+v", got)
	}
	if got := s.AlertsFor("nope"); got == nil || len(got) != 0 {
		t.Errorf("AlertsFor(missing) = %#v, want empty non-nil", got)
	}
}

func TestVesselSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    Vessel
		want string
	}{
		{"agency", Vessel{Agency: &Agency{NomeAgencia: "A"}, Terminal: &Terminal{Terminal: "T"}}, "A"},
		{"terminal", Vessel{Agency: &Agency{}, Terminal: &Terminal{Terminal: "T"}}, "T"},
		{"fallback", Vessel{}, "PCS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.v.Source(); got != tt.want {
				t.Errorf("Source() = %q, want %q", got, tt.want)
			}
		})
	}
}
