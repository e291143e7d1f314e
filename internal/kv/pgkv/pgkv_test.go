package pgkv_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/pcsboard/internal/kv"
	"github.com/linnemanlabs/pcsboard/internal/kv/pgkv"
	"github.com/linnemanlabs/pcsboard/internal/postgres"
)

func openStore(t *testing.T) *pgkv.Store {
	t.Helper()
	dsn := os.Getenv("PCSBOARD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PCSBOARD_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.Open(ctx, dsn, postgres.Options{})
	if err != nil {
		t.Fatalf("postgres.Open: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := pgkv.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgkv.New: %v", err)
	}
	return s
}

// testKey isolates concurrent test runs sharing one database.
func testKey(t *testing.T, s *pgkv.Store) string {
	t.Helper()
	k := "test:" + ulid.Make().String()
	t.Cleanup(func() { _ = s.Remove(context.Background(), k) })
	return k
}

func TestSetGetRemove(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	key := testKey(t, s)

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get before Set = ok %v, err %v", ok, err)
	}

	if err := s.Set(ctx, key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	var decoded map[string]int
	if err := json.Unmarshal(got, &decoded); err != nil || decoded["a"] != 1 {
		t.Errorf("value = %s (%v)", got, err)
	}

	if err := s.Set(ctx, key, []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.Get(ctx, key)
	if string(got) != "[1, 2]" && string(got) != "[1,2]" {
		t.Errorf("overwritten value = %s", got)
	}

	if err := s.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, key); ok {
		t.Error("key present after Remove")
	}
}

func TestSetRejectsNonJSON(t *testing.T) {
	s := openStore(t)
	if err := s.Set(context.Background(), testKey(t, s), []byte("not json")); err == nil {
		t.Fatal("expected jsonb cast error")
	}
}

func TestTypedOverPostgres(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	tv := kv.NewTyped[[]string](s, testKey(t, s))

	want := []string{"MSC-ANNA", "CMA-LYON"}
	if err := tv.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := tv.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
