package litterrobot

import (
	"sort"

	"github.com/nerrad567/litterbridge/internal/cache"
)

// EntryKind tags what a cache entry holds.
type EntryKind uint8

// Entry kinds.
const (
	EntryDeviceState EntryKind = iota + 1
	EntryUserID
	EntryToken
)

// EntryKey addresses one cache entry. ID is the external ID for device
// state and empty for the session entries.
type EntryKey struct {
	Kind EntryKind
	ID   string
}

var (
	userIDKey = EntryKey{Kind: EntryUserID}
	tokenKey  = EntryKey{Kind: EntryToken}
)

func stateKey(externalID string) EntryKey {
	return EntryKey{Kind: EntryDeviceState, ID: externalID}
}

// Store is the cache shared by the session manager and the source for one
// bridge run.
type Store struct {
	*cache.Cache[EntryKey, any]
}

// NewStore creates an empty store.
func NewStore(opts ...cache.Option) *Store {
	return &Store{Cache: cache.New[EntryKey, any](opts...)}
}

func (s *Store) session() (Session, bool) {
	uid, ok := s.Get(userIDKey)
	if !ok {
		return Session{}, false
	}
	token, ok := s.Get(tokenKey)
	if !ok {
		return Session{}, false
	}
	return Session{UserID: uid.(string), Token: token.(string)}, true
}

// State returns the cached state for externalID if fresh.
func (s *Store) State(externalID string) (DeviceState, bool) {
	v, ok := s.Get(stateKey(externalID))
	if !ok {
		return DeviceState{}, false
	}
	return v.(DeviceState), true
}

// States returns every fresh device state, ordered by external ID.
func (s *Store) States() []DeviceState {
	var out []DeviceState
	s.Range(func(k EntryKey, v any) bool {
		if k.Kind == EntryDeviceState {
			out = append(out, v.(DeviceState))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}
