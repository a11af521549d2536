package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/logging"
)

// SetOptions carries per-write options. A zero TTL means the entry never
// expires; nil Permissions selects the scope-shaped defaults. Owner addresses
// an entry under another scope identifier; the entry's permission lists
// decide whether the caller is admitted.
type SetOptions struct {
	TTL         time.Duration
	Permissions *Permissions
	Owner       string
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Backend is the durable storage layer beneath the in-memory façade.
	// Nil keeps the store purely in-process.
	Backend Backend
	// Logger defaults to NoOp.
	Logger logging.Logger
	// Clock overrides time.Now, used by TTL tests.
	Clock func() time.Time
}

// Store is the scoped, permissioned, TTL-aware key-value store. All mutation
// passes through its documented methods; the permission check is the sole
// admission-control mechanism. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	backend  Backend
	logger   logging.Logger
	now      func() time.Time
	degraded bool
}

// New constructs a Store with optional overrides.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		entries: make(map[string]*Entry),
		backend: opts.Backend,
		logger:  opts.Logger,
		now:     opts.Clock,
	}
}

// Set creates or mutates the entry for (scope, key). A first write creates
// the entry with scope-shaped default permissions unless overridden; later
// writes require write permission and apply the shallow-merge rule: when both
// the stored and incoming values are plain key-value maps the incoming keys
// are merged over the stored ones, any other shape replaces wholesale.
func (s *Store) Set(ctx context.Context, scope Scope, key string, value any, opts SetOptions, call core.CallContext) error {
	identifier := opts.Owner
	if identifier == "" {
		identifier = scopeIdentifier(scope, call)
	}
	fqk, err := ScopedKeyFor(scope, identifier, key)
	if err != nil {
		return err
	}
	now := s.now()

	s.mu.Lock()
	existing, ok := s.entries[fqk]
	if ok && existing.Expired(now) {
		delete(s.entries, fqk)
		existing, ok = nil, false
	}

	var entry *Entry
	if ok {
		if !allows(existing.Permissions.Write, call.PermissionTokens()) {
			s.mu.Unlock()
			return &PermissionError{Operation: "write", Key: fqk, Caller: call.AgentName}
		}
		existing.Value = mergeValues(existing.Value, value)
		// CreatedAt stays fixed at creation: a mutating write must not
		// extend the entry's lifetime.
		if opts.TTL > 0 {
			existing.TTL = opts.TTL
		}
		if opts.Permissions != nil {
			existing.Permissions = opts.Permissions.clone()
		}
		entry = existing
	} else {
		perms := defaultPermissions(scope, identifier, call)
		if opts.Permissions != nil {
			perms = opts.Permissions.clone()
		}
		entry = &Entry{
			Scope:       scope,
			Identifier:  identifier,
			Key:         key,
			Value:       value,
			CreatedAt:   now,
			TTL:         opts.TTL,
			Permissions: perms,
		}
		s.entries[fqk] = entry
	}
	snapshot := *entry
	s.mu.Unlock()

	s.persist(ctx, fqk, &snapshot)
	return nil
}

// Get returns the entry value or nil when the key is absent or expired.
// Expired entries are purged on the way out. A caller without read permission
// receives a PermissionError.
func (s *Store) Get(ctx context.Context, scope Scope, key string, call core.CallContext) (any, error) {
	return s.GetOwned(ctx, scope, scopeIdentifier(scope, call), key, call)
}

// GetOwned reads the entry held under another scope identifier. The caller
// still has to pass the entry's read permission check.
func (s *Store) GetOwned(ctx context.Context, scope Scope, owner, key string, call core.CallContext) (any, error) {
	fqk, err := ScopedKeyFor(scope, owner, key)
	if err != nil {
		return nil, err
	}
	now := s.now()

	s.mu.RLock()
	entry, ok := s.entries[fqk]
	s.mu.RUnlock()

	if !ok {
		entry = s.loadFromBackend(ctx, fqk)
		if entry == nil {
			return nil, nil
		}
	}
	if entry.Expired(now) {
		s.purge(ctx, fqk)
		return nil, nil
	}
	if !allows(entry.Permissions.Read, call.PermissionTokens()) {
		return nil, &PermissionError{Operation: "read", Key: fqk, Caller: call.AgentName}
	}
	return entry.Value, nil
}

// Delete removes the entry, reporting whether anything was removed. A caller
// without delete permission receives a PermissionError.
func (s *Store) Delete(ctx context.Context, scope Scope, key string, call core.CallContext) (bool, error) {
	return s.DeleteOwned(ctx, scope, scopeIdentifier(scope, call), key, call)
}

// DeleteOwned removes the entry held under another scope identifier, subject
// to the entry's delete permission list.
func (s *Store) DeleteOwned(ctx context.Context, scope Scope, owner, key string, call core.CallContext) (bool, error) {
	fqk, err := ScopedKeyFor(scope, owner, key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	entry, ok := s.entries[fqk]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if entry.Expired(s.now()) {
		delete(s.entries, fqk)
		s.mu.Unlock()
		s.backendDelete(ctx, fqk)
		return false, nil
	}
	if !allows(entry.Permissions.Delete, call.PermissionTokens()) {
		s.mu.Unlock()
		return false, &PermissionError{Operation: "delete", Key: fqk, Caller: call.AgentName}
	}
	delete(s.entries, fqk)
	s.mu.Unlock()

	s.backendDelete(ctx, fqk)
	return true, nil
}

// List returns the sorted fully-qualified keys of all live entries in a scope
// whose key part begins with prefix. Expired entries encountered during the
// scan are purged (lazy GC).
func (s *Store) List(ctx context.Context, scope Scope, prefix string) ([]string, error) {
	if !scope.Valid() {
		return nil, &ValidationError{Field: "scope", Message: "unknown scope " + string(scope)}
	}
	now := s.now()

	s.mu.Lock()
	var keys []string
	var expired []string
	for fqk, entry := range s.entries {
		if entry.Scope != scope {
			continue
		}
		if entry.Expired(now) {
			delete(s.entries, fqk)
			expired = append(expired, fqk)
			continue
		}
		if prefix == "" || strings.HasPrefix(entry.Key, prefix) {
			keys = append(keys, fqk)
		}
	}
	s.mu.Unlock()

	for _, fqk := range expired {
		s.backendDelete(ctx, fqk)
	}
	sort.Strings(keys)
	return keys, nil
}

// loadFromBackend fills a local miss from the durable layer, repopulating the
// in-memory map on hit. Returns nil on miss or backend failure.
func (s *Store) loadFromBackend(ctx context.Context, fqk string) *Entry {
	if s.backend == nil {
		return nil
	}
	entry, err := s.backend.Load(ctx, fqk)
	if err != nil {
		s.markDegraded(err)
		return nil
	}
	if entry == nil {
		return nil
	}
	s.mu.Lock()
	s.entries[fqk] = entry
	s.mu.Unlock()
	return entry
}

// persist writes through to the backend, degrading to local-only on failure.
func (s *Store) persist(ctx context.Context, fqk string, entry *Entry) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Save(ctx, fqk, entry); err != nil {
		s.markDegraded(err)
		return
	}
	s.clearDegraded()
}

func (s *Store) backendDelete(ctx context.Context, fqk string) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Delete(ctx, fqk); err != nil {
		s.markDegraded(err)
	}
}

func (s *Store) purge(ctx context.Context, fqk string) {
	s.mu.Lock()
	delete(s.entries, fqk)
	s.mu.Unlock()
	s.backendDelete(ctx, fqk)
}

// markDegraded logs the transition into local-only operation once.
func (s *Store) markDegraded(err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		s.logger.Warn("state backend unavailable, continuing with in-process cache only", "error", err)
	}
}

func (s *Store) clearDegraded() {
	s.mu.Lock()
	was := s.degraded
	s.degraded = false
	s.mu.Unlock()
	if was {
		s.logger.Info("state backend recovered")
	}
}

// Degraded reports whether the store is currently running without its
// durable backend.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// mergeValues applies the shallow-merge rule for partial updates.
func mergeValues(existing, incoming any) any {
	existingMap, okA := existing.(map[string]any)
	incomingMap, okB := incoming.(map[string]any)
	if !okA || !okB {
		return incoming
	}
	merged := make(map[string]any, len(existingMap)+len(incomingMap))
	for k, v := range existingMap {
		merged[k] = v
	}
	for k, v := range incomingMap {
		merged[k] = v
	}
	return merged
}
