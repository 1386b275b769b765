package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/combatplay/internal/battle/outcome"
	"github.com/udisondev/combatplay/internal/combatlog"
)

// StoredOutcome is an emitted session outcome.
type StoredOutcome struct {
	outcome.Summary
	ResolvedAt time.Time `json:"resolvedAt"`
}

// OutcomeRepository records the outcome of every finished session.
type OutcomeRepository struct {
	db *pgxpool.Pool
}

// NewOutcomeRepository creates a new OutcomeRepository.
func NewOutcomeRepository(db *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Save records s. The log must already be stored.
func (r *OutcomeRepository) Save(ctx context.Context, s outcome.Summary) error {
	mismatches := s.Mismatches
	if mismatches == nil {
		mismatches = []string{}
	}
	health := s.FinalHealth
	if health == nil {
		health = map[string]int{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO combat_outcomes (log_id, outcome, gold, xp, skipped, final_health, mismatches)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.LogID, string(s.Outcome), s.Rewards.Gold, s.Rewards.XP, s.Skipped, health, mismatches,
	)
	if err != nil {
		return fmt.Errorf("saving outcome of combat log %q: %w", s.LogID, err)
	}
	return nil
}

// ListByLog returns the outcomes recorded for a log, oldest first.
func (r *OutcomeRepository) ListByLog(ctx context.Context, logID string) ([]StoredOutcome, error) {
	rows, err := r.db.Query(ctx,
		`SELECT log_id, outcome, gold, xp, skipped, final_health, mismatches, resolved_at
		 FROM combat_outcomes
		 WHERE log_id = $1
		 ORDER BY resolved_at, id`, logID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes of combat log %q: %w", logID, err)
	}
	defer rows.Close()

	var out []StoredOutcome
	for rows.Next() {
		var (
			o   StoredOutcome
			res string
		)
		if err := rows.Scan(
			&o.LogID, &res, &o.Rewards.Gold, &o.Rewards.XP, &o.Skipped,
			&o.FinalHealth, &o.Mismatches, &o.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning outcome row: %w", err)
		}
		o.Outcome = combatlog.Outcome(res)
		if len(o.Mismatches) == 0 {
			o.Mismatches = nil
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcome rows: %w", err)
	}
	return out, nil
}
