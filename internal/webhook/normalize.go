package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

// Shape identifies which of the known wire layouts a webhook response used.
type Shape int

const (
	// ShapeUnknown is any payload without recognizable vessel data.
	ShapeUnknown Shape = iota
	// ShapeArray is a bare array whose first element is the snapshot.
	ShapeArray
	// ShapeSnapshot is the snapshot object itself: {"vessels": [...], ...}.
	ShapeSnapshot
	// ShapeDataWrapper wraps the snapshot: {"data": {"vessels": [...], ...}}.
	ShapeDataWrapper
	// ShapeItems carries only vessels: {"items": [...]}.
	ShapeItems
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeSnapshot:
		return "snapshot"
	case ShapeDataWrapper:
		return "data_wrapper"
	case ShapeItems:
		return "items"
	case ShapeUnknown:
		return "unknown"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// wireSnapshot is the snapshot as sent by the webhook, before any field is trusted.
type wireSnapshot struct {
	Vessels     json.RawMessage `json:"vessels"`
	Alerts      json.RawMessage `json:"alerts"`
	Counts      json.RawMessage `json:"counts"`
	KPIs        json.RawMessage `json:"kpis"`
	GeneratedAt json.RawMessage `json:"generatedAt"`
}

// envelope is the tagged result of classifying a payload. snapshot is set for
// ShapeArray, ShapeSnapshot and ShapeDataWrapper, items for ShapeItems.
type envelope struct {
	shape    Shape
	snapshot wireSnapshot
	items    json.RawMessage
}

// normalized is a snapshot plus what normalization had to discard.
type normalized struct {
	snapshot       *pcs.Snapshot
	shape          Shape
	droppedVessels int
	droppedAlerts  int
}

// classify decodes body just far enough to decide its shape. Only invalid
// JSON is an error; unrecognized layouts classify as ShapeUnknown.
func classify(body []byte) (envelope, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return envelope{}, fmt.Errorf("invalid json payload")
	}
	switch body[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil {
			return envelope{}, fmt.Errorf("decode array: %w", err)
		}
		if len(arr) == 0 {
			return envelope{shape: ShapeUnknown}, nil
		}
		first, ok := objectFields(arr[0])
		if !ok || !present(first["vessels"]) {
			return envelope{shape: ShapeUnknown}, nil
		}
		ws, err := decodeWire(arr[0])
		if err != nil {
			return envelope{}, err
		}
		return envelope{shape: ShapeArray, snapshot: ws}, nil

	case '{':
		fields, _ := objectFields(body)
		if present(fields["vessels"]) {
			ws, err := decodeWire(body)
			if err != nil {
				return envelope{}, err
			}
			return envelope{shape: ShapeSnapshot, snapshot: ws}, nil
		}
		if data, ok := objectFields(fields["data"]); ok && present(data["vessels"]) {
			ws, err := decodeWire(fields["data"])
			if err != nil {
				return envelope{}, err
			}
			return envelope{shape: ShapeDataWrapper, snapshot: ws}, nil
		}
		if isArray(fields["items"]) {
			return envelope{shape: ShapeItems, items: fields["items"]}, nil
		}
	}

	return envelope{shape: ShapeUnknown}, nil
}

// normalize turns a classified payload into the canonical snapshot. Vessels
// and Alerts are never nil; records that do not decode, and vessels without
// an id, are dropped.
func normalize(env envelope, now time.Time) normalized {
	out := normalized{
		shape: env.shape,
		snapshot: &pcs.Snapshot{
			Vessels:     []pcs.Vessel{},
			Alerts:      []pcs.Alert{},
			Counts:      map[string]int{},
			GeneratedAt: now,
		},
	}
	s := out.snapshot

	switch env.shape {
	case ShapeArray, ShapeSnapshot, ShapeDataWrapper:
		s.Vessels, out.droppedVessels = decodeVessels(env.snapshot.Vessels)
		s.Alerts, out.droppedAlerts = decodeAlerts(env.snapshot.Alerts)
		s.Counts = decodeCounts(env.snapshot.Counts)
		s.KPIs = decodeKPIs(env.snapshot.KPIs)
		if t, ok := decodeTime(env.snapshot.GeneratedAt); ok {
			s.GeneratedAt = t
		}
	case ShapeItems:
		s.Vessels, out.droppedVessels = decodeVessels(env.items)
	case ShapeUnknown:
	}

	return out
}

func decodeWire(raw json.RawMessage) (wireSnapshot, error) {
	var ws wireSnapshot
	if err := json.Unmarshal(raw, &ws); err != nil {
		return ws, fmt.Errorf("decode snapshot: %w", err)
	}
	return ws, nil
}

func decodeVessels(raw json.RawMessage) ([]pcs.Vessel, int) {
	out := []pcs.Vessel{}
	var items []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &items) != nil {
		return out, 0
	}
	dropped := 0
	for _, item := range items {
		var v pcs.Vessel
		if err := json.Unmarshal(item, &v); err != nil || v.VesselID == "" {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped
}

func decodeAlerts(raw json.RawMessage) ([]pcs.Alert, int) {
	out := []pcs.Alert{}
	var items []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &items) != nil {
		return out, 0
	}
	dropped := 0
	for _, item := range items {
		var a pcs.Alert
		if err := json.Unmarshal(item, &a); err != nil {
			dropped++
			continue
		}
		out = append(out, a)
	}
	return out, dropped
}

// decodeCounts accepts an object of numbers or a "Type: n · Type: n" summary string.
func decodeCounts(raw json.RawMessage) map[string]int {
	out := map[string]int{}
	if !present(raw) {
		return out
	}
	var summary string
	if err := json.Unmarshal(raw, &summary); err == nil {
		return pcs.ParseAlertSummary(summary)
	}
	var nums map[string]float64
	if err := json.Unmarshal(raw, &nums); err != nil {
		return out
	}
	for k, n := range nums {
		out[k] = int(n)
	}
	return out
}

func decodeKPIs(raw json.RawMessage) *pcs.KPIs {
	if !present(raw) {
		return nil
	}
	var k pcs.KPIs
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil
	}
	return &k
}

func decodeTime(raw json.RawMessage) (time.Time, bool) {
	var ts string
	if err := json.Unmarshal(raw, &ts); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
