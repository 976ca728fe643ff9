// Package datamanager keeps the remote, local and in-memory copies of the
// entities consistent under intermittent connectivity.
package datamanager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/client/local"
	"github.com/iudanet/entitysync/internal/client/memory"
	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/models"
	"github.com/iudanet/entitysync/internal/validation"
)

// PushPolicy decides what happens to local changes when a push fails.
type PushPolicy int

const (
	// PushPolicyRetain keeps the shadow lists and reports ErrPushFailed
	PushPolicyRetain PushPolicy = iota
	// PushPolicyDrop clears the shadow lists regardless of the push outcome
	PushPolicyDrop
)

// String returns the configuration name of the policy.
func (p PushPolicy) String() string {
	if p == PushPolicyDrop {
		return "drop"
	}
	return "retain"
}

// ParsePushPolicy parses "retain" or "drop".
func ParsePushPolicy(s string) (PushPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retain":
		return PushPolicyRetain, nil
	case "drop":
		return PushPolicyDrop, nil
	default:
		return PushPolicyRetain, fmt.Errorf("unknown push policy %q", s)
	}
}

// DefaultRetryBackoff is the base delay between push attempts.
const DefaultRetryBackoff = 200 * time.Millisecond

// Config describes the fixed setup of a Manager.
type Config struct {
	// Schema resolves foreign keys, nil means the "<Type>ID" convention only
	Schema *models.Schema

	// Types is the fixed set of entity types
	Types []string

	// PushRetries is the number of extra push attempts when the server is unreachable
	PushRetries uint64

	// RetryBackoff is the base delay of the exponential push backoff
	RetryBackoff time.Duration

	// PushPolicy decides what happens to local changes when a push fails
	PushPolicy PushPolicy
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHooks installs the pre-save and validation hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}

// WithOnline sets the initial connectivity flag.
func WithOnline(online bool) Option {
	return func(m *Manager) {
		m.online.Store(online)
	}
}

// WithRegisterer enables Prometheus metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = reg
	}
}

// Manager orchestrates remote, local and in-memory data.
// All writes and synchronizations are serialised; reads are served by the
// in-memory cache without blocking.
type Manager struct {
	remote     api.Remote
	registerer prometheus.Registerer
	local      *local.Provider
	memory     *memory.Provider
	schema     *models.Schema
	logger     *slog.Logger
	metrics    *managerMetrics
	typeSet    map[string]struct{}
	hooks      Hooks
	flight     singleflight.Group
	types      []string
	cfg        Config
	mu         sync.Mutex
	online     atomic.Bool
}

// New creates a data manager over the three providers.
func New(cfg Config, localProvider *local.Provider, memoryProvider *memory.Provider, remote api.Remote, opts ...Option) (*Manager, error) {
	if err := validation.ValidateTypes(cfg.Types); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	types := append([]string(nil), cfg.Types...)
	sort.Strings(types)

	m := &Manager{
		cfg:     cfg,
		types:   types,
		typeSet: make(map[string]struct{}, len(types)),
		schema:  cfg.Schema,
		local:   localProvider,
		memory:  memoryProvider,
		remote:  remote,
		logger:  slog.Default(),
	}
	if m.schema == nil {
		m.schema = models.NewSchema(types)
	}
	for _, t := range types {
		m.typeSet[t] = struct{}{}
	}

	for _, opt := range opts {
		opt(m)
	}

	metrics, err := newManagerMetrics(m.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	m.metrics = metrics

	return m, nil
}

// Types returns the configured entity types, sorted.
func (m *Manager) Types() []string {
	return append([]string(nil), m.types...)
}

// SetOnline toggles connectivity. The manager never probes the network itself.
func (m *Manager) SetOnline(online bool) {
	if m.online.Swap(online) != online {
		m.logger.Info("Connectivity changed", "online", online)
	}
}

// IsOnline reports the connectivity flag.
func (m *Manager) IsOnline() bool {
	return m.online.Load()
}

// Init prepares the local store. A store that was never initialised can
// only be created while online: without either the server or local data
// the client can't function.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	initialised, err := m.local.IsInitialised(ctx)
	if err != nil {
		return fmt.Errorf("failed to check local store: %w", err)
	}
	if !initialised && !m.IsOnline() {
		return ErrBootstrapOffline
	}

	if err := m.local.Init(ctx, m.types); err != nil {
		return fmt.Errorf("failed to initialise local store: %w", err)
	}

	m.logger.Info("Data manager initialised", "types", m.types, "online", m.IsOnline(), "fresh", !initialised)
	return nil
}

// GetEntities returns the cached entities of a type ordered by ID.
func (m *Manager) GetEntities(typ string) []models.Entity {
	return m.memory.GetEntities(typ)
}

// GetEntity returns a cached entity.
func (m *Manager) GetEntity(typ string, id int64) (models.Entity, bool) {
	return m.memory.GetEntity(typ, id)
}

// LoadFromLocal rebuilds the in-memory cache from the local store.
func (m *Manager) LoadFromLocal(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.loadFromLocal(ctx)
}

func (m *Manager) loadFromLocal(ctx context.Context) error {
	lists, err := m.local.GetAllEntities(ctx, m.types)
	if err != nil {
		return fmt.Errorf("failed to load local data: %w", err)
	}
	m.memory.ReplaceAll(lists)
	m.logger.Debug("In-memory store rebuilt from local data")
	return nil
}

// Status describes the local state of the engine.
type Status struct {
	Cached   map[string]int
	LastSync string
	Unsaved  int
	Deleted  int
	Online   bool
}

// Status returns pending change counts, the watermark and cache sizes.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unsaved, deleted, err := m.local.PendingCounts(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count pending changes: %w", err)
	}
	watermark, err := storage.LastSyncTime(ctx, m.local.Settings())
	if err != nil {
		return Status{}, fmt.Errorf("failed to read watermark: %w", err)
	}

	cached := make(map[string]int, len(m.types))
	for _, t := range m.types {
		cached[t] = m.memory.Len(t)
	}

	m.metrics.setPending(unsaved, deleted)
	return Status{
		Online:   m.IsOnline(),
		LastSync: watermark,
		Unsaved:  unsaved,
		Deleted:  deleted,
		Cached:   cached,
	}, nil
}

// DiscardLocalChanges drops every pending change, including entities that
// only exist locally, and rebuilds the cache.
func (m *Manager) DiscardLocalChanges(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.local.ResetLocalChanges(ctx); err != nil {
		return err
	}
	m.logger.Info("Local changes discarded")
	return m.loadFromLocal(ctx)
}

// ClearLocalData wipes the local store, including the watermark, so the
// next synchronization starts from scratch.
func (m *Manager) ClearLocalData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.local.ClearEntireDatabase(ctx, m.types); err != nil {
		return fmt.Errorf("failed to clear local data: %w", err)
	}
	m.memory.ReplaceAll(nil)
	m.logger.Info("Local data cleared")
	return nil
}

func (m *Manager) checkType(typ string) error {
	if _, ok := m.typeSet[typ]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return nil
}
