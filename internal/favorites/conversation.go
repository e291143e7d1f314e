package favorites

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/kv"
)

// WelcomeID is the id of the greeting that opens every conversation.
const WelcomeID = "welcome"

const welcomeText = "Olá! Sou o Agente Maritime. Posso ajudá-lo com informações sobre o status dos navios e operações portuárias. Como posso ajudar?"

// Conversation persists the assistant chat history.
type Conversation struct {
	mu     sync.Mutex
	stored *kv.Typed[[]Message]
	logger log.Logger
	now    func() time.Time
}

// NewConversation binds the conversation history to store.
func NewConversation(store kv.Store, logger log.Logger) *Conversation {
	if logger == nil {
		logger = log.Nop()
	}
	return &Conversation{
		stored: kv.NewTyped[[]Message](store, ConversationKey),
		logger: logger,
		now:    time.Now,
	}
}

func (c *Conversation) welcome() Message {
	return Message{ID: WelcomeID, Text: welcomeText, Timestamp: c.now().UTC()}
}

// load returns the stored history, or just the welcome message when nothing
// readable is stored.
func (c *Conversation) load(ctx context.Context) ([]Message, error) {
	msgs, ok, err := c.stored.Get(ctx)
	var de *kv.DecodeError
	if errors.As(err, &de) {
		c.logger.Warn(ctx, "discarding unreadable conversation history", "error", de.Err)
		return []Message{c.welcome()}, nil
	}
	if err != nil {
		return nil, err
	}
	if !ok || len(msgs) == 0 {
		return []Message{c.welcome()}, nil
	}
	return msgs, nil
}

// Messages returns the history, oldest first.
func (c *Conversation) Messages(ctx context.Context) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Append adds msgs to the end of the history and returns the full history.
func (c *Conversation) Append(ctx context.Context, msgs ...Message) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	history = append(history, msgs...)
	if err := c.stored.Set(ctx, history); err != nil {
		return nil, err
	}
	return history, nil
}

// Clear resets the history to the welcome message.
func (c *Conversation) Clear(ctx context.Context) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := []Message{c.welcome()}
	if err := c.stored.Set(ctx, history); err != nil {
		return nil, err
	}
	return history, nil
}
