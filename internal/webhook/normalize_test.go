package webhook

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

var fixedNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    Shape
		wantErr bool
	}{
		{"array", `[{"vessels":[{"vessel_id":"A"}],"alerts":[]}]`, ShapeArray, false},
		{"snapshot", `{"vessels":[],"alerts":[]}`, ShapeSnapshot, false},
		{"data wrapper", `{"data":{"vessels":[{"vessel_id":"A"}]}}`, ShapeDataWrapper, false},
		{"items", `{"items":[{"vessel_id":"A"}]}`, ShapeItems, false},
		{"empty array", `[]`, ShapeUnknown, false},
		{"array without vessels", `[{"foo":1}]`, ShapeUnknown, false},
		{"array of scalars", `[1,2]`, ShapeUnknown, false},
		{"null vessels", `{"vessels":null}`, ShapeUnknown, false},
		{"unrelated object", `{"ok":true}`, ShapeUnknown, false},
		{"items not array", `{"items":{}}`, ShapeUnknown, false},
		{"scalar", `"hello"`, ShapeUnknown, false},
		{"leading whitespace", "  \n{\"vessels\":[]}", ShapeSnapshot, false},
		{"invalid", `{"vessels":`, ShapeUnknown, true},
		{"empty body", ``, ShapeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env, err := classify([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("classify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if env.shape != tt.want {
				t.Errorf("shape = %s, want %s", env.shape, tt.want)
			}
		})
	}
}

func TestNormalize_Snapshot(t *testing.T) {
	t.Parallel()

	body := `{
		"vessels": [
			{"vessel_id": "MSC-ANNA", "statusResumo": "ok", "terminal": {"statusOperacao": "concluida"}},
			{"vessel_id": "", "statusResumo": "ok"},
			{"vessel_id": "CMA-LYON", "agency": {"manifestoEntregue": "sim"}},
			{"vessel_id": "MAERSK-KIEL", "authority": null}
		],
		"alerts": [
			{"type": "DataMismatch", "vessel_id": "MSC-ANNA", "suggestion": "", "fields": {"deltaMin": 12}},
			"not an alert"
		],
		"counts": {"agency": 4, "authority": 3.0},
		"kpis": {"totalVessels": 4, "totalAlerts": 1, "totalCritical": 0},
		"generatedAt": "2026-03-09T08:30:00Z"
	}`

	env, err := classify([]byte(body))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	got := normalize(env, fixedNow)

	if got.shape != ShapeSnapshot {
		t.Errorf("shape = %s", got.shape)
	}
	var ids []string
	for _, v := range got.snapshot.Vessels {
		ids = append(ids, v.VesselID)
	}
	if diff := cmp.Diff([]string{"MSC-ANNA", "MAERSK-KIEL"}, ids); diff != "" {
		t.Errorf("vessels mismatch (-want +got):\n%s", diff)
	}
	if got.droppedVessels != 2 {
		t.Errorf("droppedVessels = %d, want 2", got.droppedVessels)
	}
	if got.droppedAlerts != 1 || len(got.snapshot.Alerts) != 1 {
		t.Errorf("alerts = %d dropped = %d", len(got.snapshot.Alerts), got.droppedAlerts)
	}
	if d, ok := got.snapshot.Alerts[0].DeltaMin(); !ok || d != 12 {
		t.Errorf("DeltaMin = %v, %v", d, ok)
	}
	if diff := cmp.Diff(map[string]int{"agency": 4, "authority": 3}, got.snapshot.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if got.snapshot.KPIs == nil || got.snapshot.KPIs.TotalVessels != 4 {
		t.Errorf("KPIs = %+v", got.snapshot.KPIs)
	}
	want := time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC)
	if !got.snapshot.GeneratedAt.Equal(want) {
		t.Errorf("GeneratedAt = %v, want %v", got.snapshot.GeneratedAt, want)
	}
}

func TestNormalize_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantVessels int
		wantAlerts  int
	}{
		{"array", `[{"vessels":[{"vessel_id":"A"},{"vessel_id":"B"}],"alerts":[{"type":"X","vessel_id":"A"}]}]`, 2, 1},
		{"data wrapper", `{"data":{"vessels":[{"vessel_id":"A"}],"alerts":[]}}`, 1, 0},
		{"items", `{"items":[{"vessel_id":"A"},{"vessel_id":"B"},{"vessel_id":"C"}]}`, 3, 0},
		{"unknown", `{"message":"no data"}`, 0, 0},
		{"alerts not array", `{"vessels":[{"vessel_id":"A"}],"alerts":"oops"}`, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env, err := classify([]byte(tt.body))
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			got := normalize(env, fixedNow)
			s := got.snapshot
			if s.Vessels == nil || s.Alerts == nil || s.Counts == nil {
				t.Fatalf("nil collections in %+v", s)
			}
			if len(s.Vessels) != tt.wantVessels {
				t.Errorf("vessels = %d, want %d", len(s.Vessels), tt.wantVessels)
			}
			if len(s.Alerts) != tt.wantAlerts {
				t.Errorf("alerts = %d, want %d", len(s.Alerts), tt.wantAlerts)
			}
			if !s.GeneratedAt.Equal(fixedNow) {
				t.Errorf("GeneratedAt = %v, want fallback %v", s.GeneratedAt, fixedNow)
			}
		})
	}
}

func TestDecodeCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]int
	}{
		{"object", `{"agency":2}`, map[string]int{"agency": 2}},
		{"summary string", `"DataMismatch: 7 · AcessoNegado: 1"`, map[string]int{"DataMismatch": 7, "AcessoNegado": 1}},
		{"null", `null`, map[string]int{}},
		{"wrong type", `[1,2]`, map[string]int{}},
		{"absent", ``, map[string]int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, decodeCounts([]byte(tt.raw))); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_FeedsCategorize(t *testing.T) {
	t.Parallel()

	body := `[{"vessels":[
		{"vessel_id":"V1","authority":{"status":"autorizado"},"pilotage":{"status":"realizada"},"terminal":{"statusOperacao":"concluida"}},
		{"vessel_id":"V2","authority":{"status":"negado"}}
	],"alerts":[{"type":"AcessoNegado","vessel_id":"V2","suggestion":""}]}]`

	env, err := classify([]byte(body))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	s := normalize(env, fixedNow).snapshot
	cats := pcs.Categorize(s.Vessels, s.Alerts)

	if !cats.Has(pcs.CategoryNormal, "V1") {
		t.Error("V1 should be normal")
	}
	if !cats.Has(pcs.CategoryDeniedAccess, "V2") {
		t.Error("V2 should be in denied access")
	}
}
