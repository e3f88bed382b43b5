package matching

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPageSize      = 10
	defaultMaxDistanceKm = 10
)

type entry struct {
	mu sync.Mutex

	filters    Filters
	candidates []models.User
	page       int
	hasMore    bool
	loading    bool
	reloading  bool
	stale      bool
	loaded     bool

	// gen changes on every Load and on Forget; results fetched under an
	// older gen are dropped.
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	pending map[int64]Kind
	decided map[int64]struct{}
}

func newEntry() *entry {
	ctx, cancel := context.WithCancel(context.Background())
	return &entry{ctx: ctx, cancel: cancel, pending: map[int64]Kind{}, decided: map[int64]struct{}{}}
}

func (e *entry) snapshotLocked(key Key) Snapshot {
	return Snapshot{
		Key:        key,
		Candidates: append([]models.User(nil), e.candidates...),
		Page:       e.page,
		HasMore:    e.hasMore,
		Loading:    e.loading,
		Stale:      e.stale,
		Pending:    len(e.pending),
	}
}

// excludedLocked reports ids that must not enter the list: already shown,
// awaiting a decision, or decided.
func (e *entry) excludedLocked(id int64, seen map[int64]struct{}) bool {
	if _, ok := seen[id]; ok {
		return true
	}
	if _, ok := e.pending[id]; ok {
		return true
	}
	_, ok := e.decided[id]
	return ok
}

func (e *entry) removeLocked(id int64) bool {
	for i, u := range e.candidates {
		if u.ID == id {
			e.candidates = append(e.candidates[:i:i], e.candidates[i+1:]...)
			return true
		}
	}
	return false
}

// Cache holds paginated candidate lists per Key and applies like/dislike
// decisions optimistically.
type Cache struct {
	api      API
	bus      *events.Bus
	log      logging.Logger
	defaults Filters

	mu      sync.Mutex
	entries map[Key]*entry

	flight singleflight.Group
}

type Option func(*Cache)

func WithLogger(l logging.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithDefaults sets the page size and distance used when Load gets zeros.
func WithDefaults(f Filters) Option {
	return func(c *Cache) { c.defaults = f }
}

func NewCache(api API, bus *events.Bus, opts ...Option) *Cache {
	c := &Cache{
		api:      api,
		bus:      bus,
		log:      logging.Discard(),
		defaults: Filters{PageSize: defaultPageSize, MaxDistanceKm: defaultMaxDistanceKm},
		entries:  map[Key]*entry{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) normalize(f Filters) Filters {
	if f.PageSize <= 0 {
		f.PageSize = c.defaults.PageSize
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.MaxDistanceKm <= 0 {
		f.MaxDistanceKm = c.defaults.MaxDistanceKm
	}
	if f.Latitude == nil || f.Longitude == nil {
		f.Latitude, f.Longitude = c.defaults.Latitude, c.defaults.Longitude
	}
	return f
}

func query(key Key, f Filters, page int) models.CandidateQuery {
	return models.CandidateQuery{
		UserID:        key.UserID,
		SportID:       key.SportID,
		Latitude:      f.Latitude,
		Longitude:     f.Longitude,
		MaxDistanceKm: f.MaxDistanceKm,
		Page:          page,
		Size:          f.PageSize,
	}
}

func (c *Cache) lookup(key Key) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

func (c *Cache) entryFor(key Key) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = newEntry()
		c.entries[key] = e
	}
	return e
}

// Load fetches the first page for key and replaces the entry with it,
// clearing the stale flag. An in-flight LoadMore for key is abandoned.
func (c *Cache) Load(ctx context.Context, key Key, filters Filters) (Snapshot, error) {
	e := c.entryFor(key)

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.cancel()
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.filters = c.normalize(filters)
	e.loading = true
	e.reloading = true
	f := e.filters
	entryCtx := e.ctx
	e.mu.Unlock()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(entryCtx, cancel)
	defer stop()

	users, err := c.api.PotentialMatches(fetchCtx, query(key, f, 0))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		c.log.Debug(ctx, "dropping superseded first page", "key", key)
		return Snapshot{}, ErrSuperseded
	}
	e.loading = false
	e.reloading = false
	if err != nil {
		// The cursor belongs to the previous filters.
		if e.loaded {
			e.stale = true
		}
		return e.snapshotLocked(key), fmt.Errorf("load candidates %s: %w", key, err)
	}

	seen := make(map[int64]struct{}, len(users))
	list := make([]models.User, 0, len(users))
	for _, u := range users {
		if e.excludedLocked(u.ID, seen) {
			continue
		}
		seen[u.ID] = struct{}{}
		list = append(list, u)
	}

	e.candidates = list
	e.page = 1
	e.hasMore = len(users) == f.PageSize
	e.stale = false
	e.loaded = true
	c.log.Debug(ctx, "candidates loaded", "key", key, "count", len(list), "has_more", e.hasMore)
	return e.snapshotLocked(key), nil
}

// LoadMore appends the next page. Concurrent calls for the same key share
// one fetch. The fetch is tied to the entry, not to ctx: a caller giving
// up does not cancel it, but Load, Focus or Forget does. While a Load is
// outstanding LoadMore fetches nothing and returns the current snapshot.
func (c *Cache) LoadMore(ctx context.Context, key Key) (Snapshot, error) {
	e := c.lookup(key)
	if e == nil {
		return Snapshot{}, ErrNotLoaded
	}

	e.mu.Lock()
	switch {
	case !e.loaded:
		e.mu.Unlock()
		return Snapshot{}, ErrNotLoaded
	case e.stale:
		snap := e.snapshotLocked(key)
		e.mu.Unlock()
		return snap, ErrStale
	case !e.hasMore, e.reloading:
		snap := e.snapshotLocked(key)
		e.mu.Unlock()
		return snap, nil
	}
	gen := e.gen
	e.mu.Unlock()

	ch := c.flight.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		return c.fetchNext(key, e, gen)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap, res.Err
	}
}

func (c *Cache) fetchNext(key Key, e *entry, gen uint64) (Snapshot, error) {
	e.mu.Lock()
	if e.gen != gen || e.reloading {
		e.mu.Unlock()
		return Snapshot{}, ErrSuperseded
	}
	if e.stale {
		snap := e.snapshotLocked(key)
		e.mu.Unlock()
		return snap, ErrStale
	}
	if !e.hasMore {
		snap := e.snapshotLocked(key)
		e.mu.Unlock()
		return snap, nil
	}
	e.loading = true
	q := query(key, e.filters, e.page)
	ctx := e.ctx
	e.mu.Unlock()

	users, err := c.api.PotentialMatches(ctx, q)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		c.log.Debug(ctx, "dropping late page", "key", key, "page", q.Page)
		return Snapshot{}, ErrSuperseded
	}
	e.loading = false
	if err != nil {
		return e.snapshotLocked(key), fmt.Errorf("load more candidates %s: %w", key, err)
	}
	if e.stale {
		return e.snapshotLocked(key), ErrStale
	}

	seen := make(map[int64]struct{}, len(e.candidates)+len(users))
	for _, u := range e.candidates {
		seen[u.ID] = struct{}{}
	}
	added := 0
	for _, u := range users {
		if e.excludedLocked(u.ID, seen) {
			continue
		}
		seen[u.ID] = struct{}{}
		e.candidates = append(e.candidates, u)
		added++
	}
	e.page++
	e.hasMore = len(users) == e.filters.PageSize
	c.log.Debug(ctx, "candidates appended", "key", key, "page", q.Page, "added", added)
	return e.snapshotLocked(key), nil
}

// RecordDecision removes candidateID from the list before calling the
// server. On failure the whole entry is marked stale and the error is
// returned; the list must be reloaded.
func (c *Cache) RecordDecision(ctx context.Context, key Key, candidateID int64, kind Kind) (Outcome, error) {
	if kind != Like && kind != Dislike {
		return "", fmt.Errorf("record decision: unknown kind %v", kind)
	}
	e := c.lookup(key)
	if e == nil {
		return "", ErrNotLoaded
	}

	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return "", ErrNotLoaded
	}
	if _, busy := e.pending[candidateID]; busy {
		e.mu.Unlock()
		return "", ErrAlreadyProcessing
	}
	if e.stale {
		e.mu.Unlock()
		return "", ErrStale
	}
	e.pending[candidateID] = kind
	removed := e.removeLocked(candidateID)
	e.mu.Unlock()

	if removed {
		c.bus.Publish(events.CandidateRemoved, events.CandidateRemovedPayload{
			UserID: key.UserID, SportID: key.SportID, CandidateID: candidateID,
		})
	}

	outcome, result, err := c.decide(ctx, key, candidateID, kind)

	e.mu.Lock()
	delete(e.pending, candidateID)
	if err != nil {
		e.stale = true
		e.mu.Unlock()
		c.log.Warn(ctx, "decision failed, candidate list marked stale", "key", key, "candidate", candidateID, "kind", kind, "error", err)
		return "", err
	}
	e.decided[candidateID] = struct{}{}
	e.mu.Unlock()

	if outcome == OutcomeMatchCreated {
		n := models.MatchNotification{SportID: key.SportID, UserID: candidateID}
		if result != nil {
			n.Message = result.Message
			if result.MatchID != nil {
				n.MatchID = *result.MatchID
			}
		}
		c.bus.Publish(events.MatchFound, n)
	}
	return outcome, nil
}

func (c *Cache) decide(ctx context.Context, key Key, candidateID int64, kind Kind) (Outcome, *models.MatchResult, error) {
	if kind == Dislike {
		if err := c.api.Dislike(ctx, key.UserID, candidateID, key.SportID); err != nil {
			return "", nil, err
		}
		return OutcomeDislikeStored, nil, nil
	}
	res, err := c.api.Like(ctx, key.UserID, candidateID, key.SportID)
	if err != nil {
		return "", nil, err
	}
	return outcomeOf(res), res, nil
}

func (c *Cache) Snapshot(key Key) (Snapshot, bool) {
	e := c.lookup(key)
	if e == nil {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(key), e.loaded
}

// Forget drops key; in-flight fetches for it are cancelled and their
// results discarded.
func (c *Cache) Forget(key Key) {
	c.mu.Lock()
	e := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if e != nil {
		e.retire()
	}
}

// Focus forgets every key except key, as when the user switches sport.
func (c *Cache) Focus(key Key) {
	c.mu.Lock()
	var dropped []*entry
	for k, e := range c.entries {
		if k != key {
			dropped = append(dropped, e)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	for _, e := range dropped {
		e.retire()
	}
}

// Close forgets every key.
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = map[Key]*entry{}
	c.mu.Unlock()

	for _, e := range entries {
		e.retire()
	}
}

func (e *entry) retire() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.cancel()
}
