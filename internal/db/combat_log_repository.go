package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/combatplay/internal/combatlog"
)

// ErrLogIDTaken is returned when a different log is already stored under the
// same id.
var ErrLogIDTaken = errors.New("combat log id already stored with other content")

// StoredLog describes a persisted combat log without its payload.
type StoredLog struct {
	ID          string            `json:"id"`
	DungeonID   string            `json:"dungeonId"`
	Digest      string            `json:"digest"`
	Outcome     combatlog.Outcome `json:"outcome"`
	TotalRounds int               `json:"totalRounds"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// CombatLogRepository stores fetched combat logs. Logs are immutable and
// content-addressed by their digest.
type CombatLogRepository struct {
	db *pgxpool.Pool
}

// NewCombatLogRepository creates a new CombatLogRepository.
func NewCombatLogRepository(db *pgxpool.Pool) *CombatLogRepository {
	return &CombatLogRepository{db: db}
}

// Save validates and stores l. Saving the same log twice returns the record
// stored first. A log without an id is stored under a prefix of its digest.
func (r *CombatLogRepository) Save(ctx context.Context, l *combatlog.CombatLog) (StoredLog, error) {
	if err := combatlog.Validate(l); err != nil {
		return StoredLog{}, err
	}
	payload, err := combatlog.Encode(l)
	if err != nil {
		return StoredLog{}, err
	}
	digest := combatlog.Digest(payload)
	id := l.ID
	if id == "" {
		id = digest[:16]
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO combat_logs (id, dungeon_id, digest, outcome, total_rounds, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (digest) DO NOTHING`,
		id, l.DungeonID, digest, string(l.Outcome), len(l.Rounds), payload,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return StoredLog{}, fmt.Errorf("storing combat log %q: %w", id, ErrLogIDTaken)
		}
		return StoredLog{}, fmt.Errorf("storing combat log %q: %w", id, err)
	}

	stored, err := r.scanOne(ctx,
		`SELECT id, dungeon_id, digest, outcome, total_rounds, created_at
		 FROM combat_logs WHERE digest = $1`, digest)
	if err != nil {
		return StoredLog{}, fmt.Errorf("reading back combat log %q: %w", id, err)
	}
	return *stored, nil
}

// Get loads a log by id and checks it against its digest. The returned log
// carries the stored id. Returns nil, nil, nil if the log does not exist.
func (r *CombatLogRepository) Get(ctx context.Context, id string) (*combatlog.CombatLog, *StoredLog, error) {
	var (
		s       StoredLog
		outcome string
		payload []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, dungeon_id, digest, outcome, total_rounds, created_at, payload
		 FROM combat_logs WHERE id = $1`, id,
	).Scan(&s.ID, &s.DungeonID, &s.Digest, &outcome, &s.TotalRounds, &s.CreatedAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying combat log %q: %w", id, err)
	}
	s.Outcome = combatlog.Outcome(outcome)

	if err := combatlog.VerifyDigest(payload, s.Digest); err != nil {
		return nil, nil, fmt.Errorf("combat log %q: %w", id, err)
	}
	l, err := combatlog.Decode(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding stored combat log %q: %w", id, err)
	}
	// Logs saved without an id live under a digest prefix.
	l.ID = s.ID
	return l, &s, nil
}

// List returns the newest logs of a dungeon; an empty dungeonID lists all.
func (r *CombatLogRepository) List(ctx context.Context, dungeonID string, limit int) ([]StoredLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, dungeon_id, digest, outcome, total_rounds, created_at
		 FROM combat_logs
		 WHERE $1 = '' OR dungeon_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`, dungeonID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying combat logs: %w", err)
	}
	defer rows.Close()

	logs := make([]StoredLog, 0, limit)
	for rows.Next() {
		var (
			s       StoredLog
			outcome string
		)
		if err := rows.Scan(&s.ID, &s.DungeonID, &s.Digest, &outcome, &s.TotalRounds, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning combat log row: %w", err)
		}
		s.Outcome = combatlog.Outcome(outcome)
		logs = append(logs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating combat log rows: %w", err)
	}
	return logs, nil
}

func (r *CombatLogRepository) scanOne(ctx context.Context, query string, args ...any) (*StoredLog, error) {
	var (
		s       StoredLog
		outcome string
	)
	err := r.db.QueryRow(ctx, query, args...).
		Scan(&s.ID, &s.DungeonID, &s.Digest, &outcome, &s.TotalRounds, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Outcome = combatlog.Outcome(outcome)
	return &s, nil
}
