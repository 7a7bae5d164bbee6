package litterrobot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStateTTL is how long a fetched device state is served from cache.
	DefaultStateTTL = 17 * time.Second

	// DefaultFetchTimeout bounds one shared list refresh.
	DefaultFetchTimeout = 30 * time.Second
)

// API is the subset of the vendor client used after login. *Client satisfies it.
type API interface {
	ListRobots(ctx context.Context, s Session) ([]DeviceState, error)
	DispatchCommand(ctx context.Context, s Session, externalID, command string) error
}

// SourceOptions configures a Source.
type SourceOptions struct {
	API      API
	Sessions *SessionManager
	Store    *Store

	// StateTTL defaults to DefaultStateTTL.
	StateTTL time.Duration

	// FetchTimeout defaults to DefaultFetchTimeout. It applies to the shared
	// refresh, which outlives the caller that started it.
	FetchTimeout time.Duration
	Logger       Logger
}

// Source reads robot state through the cache and sends commands.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Concurrent cache misses share one list request.
type Source struct {
	api          API
	sessions     *SessionManager
	store        *Store
	stateTTL     time.Duration
	fetchTimeout time.Duration
	logger       Logger
	fetches      singleflight.Group
}

// NewSource validates options and creates a Source.
func NewSource(opts SourceOptions) (*Source, error) {
	if opts.API == nil {
		return nil, errors.New("litterrobot: source requires an API")
	}
	if opts.Sessions == nil {
		return nil, errors.New("litterrobot: source requires a session manager")
	}
	if opts.Store == nil {
		return nil, errors.New("litterrobot: source requires a store")
	}

	ttl := opts.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	return &Source{
		api:          opts.API,
		sessions:     opts.Sessions,
		store:        opts.Store,
		stateTTL:     ttl,
		fetchTimeout: fetchTimeout,
		logger:       orNop(opts.Logger),
	}, nil
}

// FetchOne returns the state of one robot, from cache when fresh.
//
// On a miss the whole device list is fetched once and every robot in it is
// cached, so polling several robots in quick succession costs one request.
// A robot absent from the list yields ErrNotFound. Errors are classified and
// logged here; callers should skip the cycle.
//
// The shared refresh runs detached from any one caller's context, bounded by
// the fetch timeout. A caller whose ctx ends first gets ctx.Err() while the
// other waiters still receive the list.
func (s *Source) FetchOne(ctx context.Context, key DeviceKey) (DeviceState, error) {
	if st, ok := s.store.State(key.ExternalID); ok {
		return st, nil
	}

	ch := s.fetches.DoChan("list", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.refresh(fctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return DeviceState{}, ctx.Err()
	}

	v, err := res.Val, res.Err
	if err != nil {
		s.logger.Warn("device fetch failed",
			"device", key.Slug,
			"class", Classify(err),
			"error", err,
		)
		return DeviceState{}, err
	}

	st, ok := v.(map[string]DeviceState)[key.ExternalID]
	if !ok {
		err := fmt.Errorf("%w: %s (%s)", ErrNotFound, key.Slug, key.ExternalID)
		s.logger.Warn("device fetch failed",
			"device", key.Slug,
			"class", Classify(err),
			"error", err,
		)
		return DeviceState{}, err
	}
	return st, nil
}

// refresh lists every robot and caches the result as one atomic batch.
func (s *Source) refresh(ctx context.Context) (map[string]DeviceState, error) {
	sess, err := s.sessions.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	states, err := s.api.ListRobots(ctx, sess)
	if err != nil {
		s.dropRejectedSession(sess, err)
		return nil, err
	}

	byID := make(map[string]DeviceState, len(states))
	entries := make(map[EntryKey]any, len(states))
	for _, st := range states {
		byID[st.ExternalID] = st
		entries[stateKey(st.ExternalID)] = st
	}
	s.store.SetMany(entries, s.stateTTL)

	s.logger.Debug("device list refreshed", "count", len(states))
	return byID, nil
}

// Send translates and dispatches cmd, returning the wire command that was
// sent. Kinds with no wire form (Sleep, None) are acknowledged and return ""
// without contacting the vendor. A successful send evicts the robot's cached
// state so the next poll reflects the change.
func (s *Source) Send(ctx context.Context, cmd Command) (string, error) {
	wire := Translate(cmd)
	if wire == "" {
		s.logger.Debug("command not forwarded",
			"device", cmd.Device.Slug,
			"kind", cmd.Kind.String(),
		)
		return "", nil
	}

	sess, err := s.sessions.GetSession(ctx)
	if err != nil {
		return wire, err
	}

	if err := s.api.DispatchCommand(ctx, sess, cmd.Device.ExternalID, wire); err != nil {
		s.dropRejectedSession(sess, err)
		s.logger.Warn("command dispatch failed",
			"device", cmd.Device.Slug,
			"kind", cmd.Kind.String(),
			"class", Classify(err),
			"error", err,
		)
		return wire, err
	}

	s.store.Delete(stateKey(cmd.Device.ExternalID))
	return wire, nil
}

// Cached returns the cached state of a robot without fetching.
func (s *Source) Cached(externalID string) (DeviceState, bool) {
	return s.store.State(externalID)
}

// Snapshot returns every cached device state, ordered by external ID.
func (s *Source) Snapshot() []DeviceState {
	return s.store.States()
}

// dropRejectedSession forces a relogin on the next call when the vendor
// rejected the session's token.
func (s *Source) dropRejectedSession(sess Session, err error) {
	if errors.Is(err, ErrUnauthorized) {
		s.sessions.Invalidate(sess)
	}
}
