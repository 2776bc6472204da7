package fhe

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of one identity's privacy session.
type Status uint8

const (
	StatusIdle Status = iota
	StatusInitializing
	StatusReady
	StatusError
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// StatusChange is published to subscribers on every transition.
type StatusChange struct {
	Identity string
	Status   Status
	Err      error
}

// ServiceClient is the encryption-service capability the manager
// coordinates. *Client implements it; tests substitute fakes.
type ServiceClient interface {
	Initialize(ctx context.Context, chainID uint64, userAddress string) (Session, error)
	Encrypt(ctx context.Context, sessionID string, value *big.Int, typ string) (string, error)
	Unseal(ctx context.Context, sessionID, ciphertext, typ string) (*big.Int, error)
}

// ManagerConfig holds session and retry tuning.
type ManagerConfig struct {
	ChainID uint64
	// SessionTTL applies when the service does not return an expiry.
	SessionTTL time.Duration
	// DecryptAttempts bounds Decrypt; default 3.
	DecryptAttempts int
	// DecryptBackoff is the base delay between decrypt attempts.
	DecryptBackoff time.Duration
	// MaterializeBackoff is the longer base delay used when the target
	// is not yet materialized upstream.
	MaterializeBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

func (c *ManagerConfig) applyDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.DecryptAttempts <= 0 {
		c.DecryptAttempts = 3
	}
	if c.DecryptBackoff <= 0 {
		c.DecryptBackoff = 500 * time.Millisecond
	}
	if c.MaterializeBackoff <= 0 {
		c.MaterializeBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// entry is the per-identity state machine value. While an authorization
// handshake is in flight, pending is non-nil and is closed when the
// handshake settles; concurrent callers wait on it instead of starting
// a second handshake.
type entry struct {
	status  Status
	session Session
	err     error
	pending chan struct{}
}

// Manager owns privacy sessions keyed by identity. It coalesces
// concurrent authorizations (a handshake needs an interactive signature
// and must not be requested twice), checks expiry lazily, and wraps
// decryption with bounded backoff.
type Manager struct {
	cfg    ManagerConfig
	client ServiceClient
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
	subs    []chan StatusChange

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager builds a session manager around a service client.
func NewManager(cfg ManagerConfig, client ServiceClient, logger *zap.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		entries: make(map[string]*entry),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Subscribe returns a channel receiving status transitions. Sends are
// non-blocking; a slow subscriber misses updates rather than stalling
// the manager.
func (m *Manager) Subscribe() <-chan StatusChange {
	ch := make(chan StatusChange, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Status returns the current status for an identity.
func (m *Manager) Status(identity string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[identity]
	if !ok {
		return StatusIdle
	}
	if e.status == StatusReady && e.session.Expired(m.now()) {
		return StatusExpired
	}
	return e.status
}

// Authorize returns a live session for the identity, performing the
// handshake only when no cached session exists. Concurrent callers for
// the same identity share one handshake and receive the same session.
func (m *Manager) Authorize(ctx context.Context, identity string) (Session, error) {
	if identity == "" {
		return Session{}, fmt.Errorf("identity is required")
	}

	m.mu.Lock()
	e, ok := m.entries[identity]
	if ok {
		switch {
		case e.pending != nil:
			// Handshake in flight: wait for it rather than starting
			// another.
			pending := e.pending
			m.mu.Unlock()
			select {
			case <-ctx.Done():
				return Session{}, ctx.Err()
			case <-pending:
			}
			m.mu.Lock()
			session, err := e.session, e.err
			m.mu.Unlock()
			return session, err
		case e.status == StatusReady && !e.session.Expired(m.now()):
			session := e.session
			m.mu.Unlock()
			return session, nil
		case e.status == StatusReady:
			// Expired under us; fall through to a fresh handshake.
			m.publishLocked(StatusChange{Identity: identity, Status: StatusExpired})
		}
	}

	e = &entry{status: StatusInitializing, pending: make(chan struct{})}
	m.entries[identity] = e
	m.publishLocked(StatusChange{Identity: identity, Status: StatusInitializing})
	m.mu.Unlock()

	session, err := m.client.Initialize(ctx, m.cfg.ChainID, identity)
	if err == nil && session.ExpiresAt.IsZero() {
		session.ExpiresAt = m.now().Add(m.cfg.SessionTTL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e.session, e.err = session, err
	if err != nil {
		e.status = StatusError
	} else {
		e.status = StatusReady
	}
	close(e.pending)
	e.pending = nil

	// Clear may have replaced the entry while the handshake ran; a
	// result for a dropped entry is delivered to its waiters but not
	// cached.
	if current, ok := m.entries[identity]; !ok || current != e {
		return session, err
	}

	if err != nil {
		m.logger.Warn("authorization failed", zap.String("identity", identity), zap.Error(err))
		m.publishLocked(StatusChange{Identity: identity, Status: StatusError, Err: err})
		return Session{}, err
	}

	m.logger.Info("privacy session ready",
		zap.String("identity", identity),
		zap.Time("expires_at", session.ExpiresAt),
	)
	m.publishLocked(StatusChange{Identity: identity, Status: StatusReady})
	return session, nil
}

// Encrypt encrypts a value under the identity's ready session.
func (m *Manager) Encrypt(ctx context.Context, identity string, value *big.Int, typ string) (string, error) {
	session, err := m.readySession(identity)
	if err != nil {
		return "", err
	}
	return m.client.Encrypt(ctx, session.SessionID, value, typ)
}

// Decrypt unseals a ciphertext handle, retrying up to the configured
// bound with capped exponential backoff. A not-yet-materialized target
// waits on a longer base delay before the same exponential growth.
func (m *Manager) Decrypt(ctx context.Context, identity, ciphertext, typ string) (*big.Int, error) {
	session, err := m.readySession(identity)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.DecryptAttempts; attempt++ {
		value, err := m.client.Unseal(ctx, session.SessionID, ciphertext, typ)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == m.cfg.DecryptAttempts {
			break
		}

		base := m.cfg.DecryptBackoff
		if errors.Is(err, ErrNotYetMaterialized) {
			base = m.cfg.MaterializeBackoff
		}
		// Double up to the cap instead of shifting by the attempt
		// number: a large attempt bound would overflow the shift.
		delay := base
		for i := 1; i < attempt && delay < m.cfg.MaxBackoff; i++ {
			delay *= 2
		}
		if delay > m.cfg.MaxBackoff {
			delay = m.cfg.MaxBackoff
		}

		m.logger.Debug("decrypt retry",
			zap.String("identity", identity),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := m.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, m.cfg.DecryptAttempts, lastErr)
}

// Clear drops the identity's session and any in-flight authorization
// reference. Required on account switch so one identity's session is
// never attributed to another.
func (m *Manager) Clear(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[identity]; !ok {
		return
	}
	delete(m.entries, identity)
	m.publishLocked(StatusChange{Identity: identity, Status: StatusIdle})
}

func (m *Manager) readySession(identity string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[identity]
	if !ok || e.status != StatusReady {
		return Session{}, ErrNoSession
	}
	if e.session.Expired(m.now()) {
		return Session{}, ErrSessionExpired
	}
	return e.session, nil
}

func (m *Manager) publishLocked(change StatusChange) {
	for _, ch := range m.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
