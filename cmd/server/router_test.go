package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/pcsboard/internal/api"
	"github.com/linnemanlabs/pcsboard/internal/dashboard"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/kv/memkv"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
	"github.com/linnemanlabs/pcsboard/internal/webhook"
)

type staticFetcher struct{}

func (staticFetcher) FetchSnapshot(context.Context, webhook.Filters) (*pcs.Snapshot, error) {
	return &pcs.Snapshot{
		Vessels:     []pcs.Vessel{{VesselID: "MSC-ANNA", StatusResumo: "ok"}},
		Counts:      map[string]int{"agency": 1},
		GeneratedAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memkv.New()
	deps := api.Deps{
		Dashboard: dashboard.NewService(staticFetcher{}, log.Nop(), nil, dashboard.Options{}),
		Favorites: favorites.NewVessels(store, nil),
		Messages:  favorites.NewMessages(store, nil),
	}
	r := newRouter(log.Nop(), deps, func(r chi.Router) {
		r.Get("/-/healthy", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") })
	})
	srv := httptest.NewServer(instrument(r, log.Nop(), nil, httpmw.ClientIPOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_ProbeAndAPI(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/-/healthy")
	if err != nil {
		t.Fatalf("GET healthy: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/kpis")
	if err != nil {
		t.Fatalf("GET kpis: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("kpis status = %d, want 200", resp.StatusCode)
	}
	var kpis pcs.DashboardKPIs
	if err := json.NewDecoder(resp.Body).Decode(&kpis); err != nil {
		t.Fatalf("decode kpis: %v", err)
	}
	if kpis.TotalVessels != 1 {
		t.Errorf("TotalVessels = %d, want 1", kpis.TotalVessels)
	}
}

func TestRouter_CompressesJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/vessels", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	// a transport with compression disabled leaves the body encoded
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET vessels: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, _ := io.ReadAll(zr)
	if !strings.Contains(string(body), "MSC-ANNA") {
		t.Errorf("body = %s, want MSC-ANNA", body)
	}
}

func TestRouter_RejectsLargeBodies(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	payload := `{"id":"m1","text":"` + strings.Repeat("a", maxRequestBody) + `"}`
	resp, err := http.Post(srv.URL+"/api/v1/messages/favorites/", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}
