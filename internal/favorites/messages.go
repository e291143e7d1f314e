package favorites

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/kv"
)

// Message is one chat message, from the user or the assistant.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsUser    bool      `json:"isUser"`
}

// Messages manages starred assistant messages, in the order they were starred.
type Messages struct {
	mu     sync.Mutex
	list   *kv.Typed[[]Message]
	logger log.Logger
}

// NewMessages binds the starred-message list to store.
func NewMessages(store kv.Store, logger log.Logger) *Messages {
	if logger == nil {
		logger = log.Nop()
	}
	return &Messages{list: kv.NewTyped[[]Message](store, MessagesKey), logger: logger}
}

func (m *Messages) load(ctx context.Context) ([]Message, error) {
	list, _, err := m.list.Get(ctx)
	var de *kv.DecodeError
	if errors.As(err, &de) {
		m.logger.Warn(ctx, "discarding unreadable favorite messages", "error", de.Err)
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Message{}
	}
	return list, nil
}

// List returns the starred messages.
func (m *Messages) List(ctx context.Context) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Add stars msg. A message whose id is already starred is left untouched
// and added=false.
func (m *Messages) Add(ctx context.Context, msg Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing.ID == msg.ID {
			return false, nil
		}
	}
	return true, m.list.Set(ctx, append(list, msg))
}

// Remove unstars id and reports whether it was starred.
func (m *Messages) Remove(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]Message, 0, len(list))
	for _, msg := range list {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	return true, m.list.Set(ctx, kept)
}

// IsFavorite reports whether id is starred.
func (m *Messages) IsFavorite(ctx context.Context, id string) (bool, error) {
	list, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	for _, msg := range list {
		if msg.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of starred messages.
func (m *Messages) Count(ctx context.Context) (int, error) {
	list, err := m.List(ctx)
	return len(list), err
}
