package replayserver

import (
	"context"
	"sync"
	"time"

	"github.com/udisondev/combatplay/internal/battle/outcome"
	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/db"
)

// LogStore keeps uploaded combat logs.
type LogStore interface {
	Save(ctx context.Context, l *combatlog.CombatLog) (db.StoredLog, error)
	// Get returns nil, nil, nil for an unknown id.
	Get(ctx context.Context, id string) (*combatlog.CombatLog, *db.StoredLog, error)
}

// OutcomeStore records finished sessions.
type OutcomeStore interface {
	Save(ctx context.Context, s outcome.Summary) error
}

// MemoryStore keeps logs and outcomes in process when no database is
// configured.
//
// Thread-safe.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string][]byte
	meta     map[string]db.StoredLog
	byDigest map[string]string
	outcomes map[string][]outcome.Summary
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payloads: make(map[string][]byte),
		meta:     make(map[string]db.StoredLog),
		byDigest: make(map[string]string),
		outcomes: make(map[string][]outcome.Summary),
	}
}

// Save implements LogStore with the same rules as the database repository.
func (m *MemoryStore) Save(_ context.Context, l *combatlog.CombatLog) (db.StoredLog, error) {
	if err := combatlog.Validate(l); err != nil {
		return db.StoredLog{}, err
	}
	payload, err := combatlog.Encode(l)
	if err != nil {
		return db.StoredLog{}, err
	}
	digest := combatlog.Digest(payload)
	id := l.ID
	if id == "" {
		id = digest[:16]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byDigest[digest]; ok {
		return m.meta[existing], nil
	}
	if _, taken := m.meta[id]; taken {
		return db.StoredLog{}, db.ErrLogIDTaken
	}

	s := db.StoredLog{
		ID:          id,
		DungeonID:   l.DungeonID,
		Digest:      digest,
		Outcome:     l.Outcome,
		TotalRounds: len(l.Rounds),
		CreatedAt:   time.Now().UTC(),
	}
	m.payloads[id] = payload
	m.meta[id] = s
	m.byDigest[digest] = id
	return s, nil
}

// Get implements LogStore.
func (m *MemoryStore) Get(_ context.Context, id string) (*combatlog.CombatLog, *db.StoredLog, error) {
	m.mu.RLock()
	payload, ok := m.payloads[id]
	s := m.meta[id]
	m.mu.RUnlock()

	if !ok {
		return nil, nil, nil
	}
	if err := combatlog.VerifyDigest(payload, s.Digest); err != nil {
		return nil, nil, err
	}
	l, err := combatlog.Decode(payload)
	if err != nil {
		return nil, nil, err
	}
	l.ID = s.ID
	return l, &s, nil
}

// SaveOutcome records s. Wrap it in OutcomeFunc to use it as an OutcomeStore.
func (m *MemoryStore) SaveOutcome(_ context.Context, s outcome.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[s.LogID] = append(m.outcomes[s.LogID], s)
	return nil
}

// Outcomes returns the outcomes recorded for a log.
func (m *MemoryStore) Outcomes(logID string) []outcome.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]outcome.Summary(nil), m.outcomes[logID]...)
}

// OutcomeFunc adapts a function to OutcomeStore.
type OutcomeFunc func(ctx context.Context, s outcome.Summary) error

func (f OutcomeFunc) Save(ctx context.Context, s outcome.Summary) error { return f(ctx, s) }
