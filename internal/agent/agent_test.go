package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/kv/memkv"
)

type stubProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	history [][]favorites.Message
}

func (p *stubProvider) Reply(_ context.Context, history []favorites.Message, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, history)
	return p.reply, p.err
}

func newService(t *testing.T, p Provider) (*Service, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	conv := favorites.NewConversation(memkv.New(), log.Nop())
	return NewService(p, conv, log.Nop(), m), m
}

func TestSend_Success(t *testing.T) {
	t.Parallel()

	p := &stubProvider{reply: "CMA-LYON aguarda acesso."}
	s, m := newService(t, p)
	ctx := context.Background()

	ex, err := s.Send(ctx, "  e o CMA-LYON?  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ex.Failed {
		t.Error("Failed = true")
	}
	if ex.Question.Text != "e o CMA-LYON?" || !ex.Question.IsUser || ex.Question.ID == "" {
		t.Errorf("question = %+v", ex.Question)
	}
	if ex.Answer.Text != "CMA-LYON aguarda acesso." || ex.Answer.IsUser {
		t.Errorf("answer = %+v", ex.Answer)
	}
	if len(ex.History) != 3 || ex.History[0].ID != favorites.WelcomeID {
		t.Errorf("history = %+v", ex.History)
	}
	if len(p.history) != 1 || len(p.history[0]) != 1 {
		t.Errorf("provider saw history %+v, want welcome only", p.history)
	}

	stored, _ := s.History(ctx)
	if len(stored) != 3 {
		t.Errorf("stored history has %d messages, want 3", len(stored))
	}
	if got := testutil.ToFloat64(m.Replies.WithLabelValues("success")); got != 1 {
		t.Errorf("success replies = %v, want 1", got)
	}
}

func TestSend_ProviderFailureStoresErrorReply(t *testing.T) {
	t.Parallel()

	s, m := newService(t, &stubProvider{err: errors.New("agent webhook error 502")})

	ex, err := s.Send(context.Background(), "status?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !ex.Failed || ex.Answer.Text != ErrorReply {
		t.Errorf("exchange = %+v", ex)
	}
	if len(ex.History) != 3 {
		t.Errorf("history len = %d, want 3", len(ex.History))
	}
	if got := testutil.ToFloat64(m.Replies.WithLabelValues("error")); got != 1 {
		t.Errorf("error replies = %v, want 1", got)
	}
}

func TestSend_EmptyMessage(t *testing.T) {
	t.Parallel()

	p := &stubProvider{reply: "x"}
	s, _ := newService(t, p)
	if _, err := s.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
	if len(p.history) != 0 {
		t.Error("provider should not be called for blank input")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	s, _ := newService(t, &stubProvider{reply: "ok"})
	ctx := context.Background()
	_, _ = s.Send(ctx, "oi")

	history, err := s.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(history) != 1 || history[0].ID != favorites.WelcomeID {
		t.Errorf("history = %+v", history)
	}
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	conv := favorites.NewConversation(memkv.New(), nil)
	s := NewService(&stubProvider{reply: "ok"}, conv, nil, nil)
	if _, err := s.Send(context.Background(), "oi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
