// Package favorites persists the user's watched vessels, starred assistant
// messages and the assistant conversation through a kv.Store.
package favorites

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/kv"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

// Storage keys, kept compatible with the browser dashboard's local storage.
const (
	VesselsKey      = "pcs:favorites"
	MessagesKey     = "favorite-messages"
	ConversationKey = "agente-maritimo-conversation"
)

// Vessel is a watched vessel with the status it had when it was added.
type Vessel struct {
	ID        string    `json:"id"`
	VesselID  string    `json:"vessel_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    string    `json:"source,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// Vessels manages the favorite-vessel list. Mutations are serialized within
// the process.
type Vessels struct {
	mu     sync.Mutex
	list   *kv.Typed[[]Vessel]
	logger log.Logger
	now    func() time.Time
}

// NewVessels binds the favorite list to store.
func NewVessels(store kv.Store, logger log.Logger) *Vessels {
	if logger == nil {
		logger = log.Nop()
	}
	return &Vessels{
		list:   kv.NewTyped[[]Vessel](store, VesselsKey),
		logger: logger,
		now:    time.Now,
	}
}

// load reads the stored list. An unreadable value is logged and treated as empty.
func (f *Vessels) load(ctx context.Context) ([]Vessel, error) {
	list, _, err := f.list.Get(ctx)
	var de *kv.DecodeError
	if errors.As(err, &de) {
		f.logger.Warn(ctx, "discarding unreadable favorites", "key", de.Key, "error", de.Err)
		return []Vessel{}, nil
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Vessel{}
	}
	return list, nil
}

// List returns the favorites, most recently added first.
func (f *Vessels) List(ctx context.Context) ([]Vessel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].AddedAt.After(list[j].AddedAt) })
	return list, nil
}

// Add watches v. Adding a vessel that is already a favorite returns the
// existing entry and added=false.
func (f *Vessels) Add(ctx context.Context, v *pcs.Vessel) (Vessel, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load(ctx)
	if err != nil {
		return Vessel{}, false, err
	}
	for _, fav := range list {
		if fav.VesselID == v.VesselID {
			return fav, false, nil
		}
	}
	fav := f.entry(v)
	if err := f.list.Set(ctx, append([]Vessel{fav}, list...)); err != nil {
		return Vessel{}, false, err
	}
	return fav, true, nil
}

// Remove stops watching vesselID and reports whether it was a favorite.
func (f *Vessels) Remove(ctx context.Context, vesselID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load(ctx)
	if err != nil {
		return false, err
	}
	kept := list[:0]
	for _, fav := range list {
		if fav.VesselID != vesselID {
			kept = append(kept, fav)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	return true, f.list.Set(ctx, kept)
}

// Toggle adds v when it is not a favorite and removes it otherwise. It
// returns whether v is a favorite afterwards. The check and the change happen
// under one lock.
func (f *Vessels) Toggle(ctx context.Context, v *pcs.Vessel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]Vessel, 0, len(list))
	for _, fav := range list {
		if fav.VesselID != v.VesselID {
			kept = append(kept, fav)
		}
	}
	if len(kept) < len(list) {
		return false, f.list.Set(ctx, kept)
	}
	if err := f.list.Set(ctx, append([]Vessel{f.entry(v)}, list...)); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Vessels) entry(v *pcs.Vessel) Vessel {
	now := f.now().UTC()
	return Vessel{
		ID:        ulid.Make().String(),
		VesselID:  v.VesselID,
		Title:     v.VesselID,
		Status:    v.StatusResumo,
		UpdatedAt: now,
		Source:    v.Source(),
		AddedAt:   now,
	}
}

// IsFavorite reports whether vesselID is watched.
func (f *Vessels) IsFavorite(ctx context.Context, vesselID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load(ctx)
	if err != nil {
		return false, err
	}
	for _, fav := range list {
		if fav.VesselID == vesselID {
			return true, nil
		}
	}
	return false, nil
}

// Clear removes every favorite.
func (f *Vessels) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list.Set(ctx, []Vessel{})
}

// Count returns the number of favorites.
func (f *Vessels) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load(ctx)
	return len(list), err
}
