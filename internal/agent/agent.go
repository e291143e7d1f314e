// Package agent relays user questions to the maritime assistant and keeps
// the conversation history.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
)

// ErrorReply is stored as the assistant's answer when the provider fails.
const ErrorReply = "Desculpe, ocorreu um erro ao processar sua pergunta. Tente novamente."

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Provider produces the assistant's reply to text, given the history that
// preceded it.
type Provider interface {
	Reply(ctx context.Context, history []favorites.Message, text string) (string, error)
}

// Exchange is the outcome of one Send.
type Exchange struct {
	Question favorites.Message   `json:"question"`
	Answer   favorites.Message   `json:"answer"`
	Failed   bool                `json:"failed"`
	History  []favorites.Message `json:"history"`
}

// Service sends questions to a Provider and persists both sides.
type Service struct {
	provider Provider
	conv     *favorites.Conversation
	logger   log.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewService creates an assistant service. metrics may be nil.
func NewService(p Provider, conv *favorites.Conversation, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{provider: p, conv: conv, logger: logger, metrics: metrics, now: time.Now}
}

// History returns the stored conversation.
func (s *Service) History(ctx context.Context) ([]favorites.Message, error) {
	return s.conv.Messages(ctx)
}

// Clear resets the conversation to the welcome message.
func (s *Service) Clear(ctx context.Context) ([]favorites.Message, error) {
	return s.conv.Clear(ctx)
}

// Send asks the provider about text. A provider failure is not an error: the
// fixed ErrorReply is recorded as the answer and Failed is set. Only blank
// input and storage failures are returned as errors.
func (s *Service) Send(ctx context.Context, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	history, err := s.conv.Messages(ctx)
	if err != nil {
		return nil, err
	}

	question := favorites.Message{ID: ulid.Make().String(), Text: text, Timestamp: s.now().UTC(), IsUser: true}

	start := time.Now()
	reply, err := s.provider.Reply(ctx, history, text)
	failed := err != nil
	if failed {
		s.logger.Error(ctx, err, "assistant reply failed", "history", len(history))
		reply = ErrorReply
	}
	s.metrics.observe(failed, time.Since(start))

	answer := favorites.Message{ID: ulid.Make().String(), Text: reply, Timestamp: s.now().UTC()}
	updated, err := s.conv.Append(ctx, question, answer)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "assistant replied",
		"failed", failed,
		"reply_chars", len(reply),
		"duration", time.Since(start),
	)

	return &Exchange{Question: question, Answer: answer, Failed: failed, History: updated}, nil
}
