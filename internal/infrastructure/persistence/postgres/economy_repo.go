package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ECONOMY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EconomyRepository implements economy.Repository for PostgreSQL.
type EconomyRepository struct {
	conn *Connection
}

// NewEconomyRepository creates a new EconomyRepository.
func NewEconomyRepository(conn *Connection) *EconomyRepository {
	return &EconomyRepository{conn: conn}
}

const economyColumns = `
	user_id, gems, hearts, max_hearts, hearts_updated_at, unlimited_hearts_until,
	streak_freezes, streak_shield_until, xp_boosts, super_trial_used, double_or_nothing,
	current_streak, longest_streak, last_streak_date,
	daily_lesson_date, daily_xp, daily_lesson_count, daily_study_seconds, daily_quest_completions,
	version, created_at, updated_at`

// Get returns the stored record as-is; missing columns stay nil.
func (r *EconomyRepository) Get(ctx context.Context, userID string) (economy.RawRecord, error) {
	query := `SELECT ` + economyColumns + ` FROM economy_records WHERE user_id = $1`

	raw, err := scanEconomy(r.conn.QueryRow(ctx, query, userID))
	if err != nil {
		if IsNoRows(err) {
			return economy.RawRecord{}, shared.ErrEconomyNotFound
		}
		return economy.RawRecord{}, fmt.Errorf("failed to get economy record: %w", err)
	}
	return raw, nil
}

// Create inserts a new record with version 1.
func (r *EconomyRepository) Create(ctx context.Context, rec *economy.Record) error {
	query := `
		INSERT INTO economy_records (` + economyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22)
	`

	args, err := economyArgs(rec)
	if err != nil {
		return err
	}
	args = append(args, int64(1), rec.CreatedAt, rec.UpdatedAt)

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEconomyAlreadyExists
		}
		return fmt.Errorf("failed to create economy record: %w", err)
	}

	rec.Version = 1
	return nil
}

// Save overwrites the record when the stored version equals rec.Version and
// bumps the version. A missing row yields ErrEconomyNotFound, a moved
// version ErrStaleRecord.
func (r *EconomyRepository) Save(ctx context.Context, rec *economy.Record) error {
	query := `
		UPDATE economy_records SET
			gems = $2,
			hearts = $3,
			max_hearts = $4,
			hearts_updated_at = $5,
			unlimited_hearts_until = $6,
			streak_freezes = $7,
			streak_shield_until = $8,
			xp_boosts = $9,
			super_trial_used = $10,
			double_or_nothing = $11,
			current_streak = $12,
			longest_streak = $13,
			last_streak_date = $14,
			daily_lesson_date = $15,
			daily_xp = $16,
			daily_lesson_count = $17,
			daily_study_seconds = $18,
			daily_quest_completions = $19,
			version = version + 1,
			updated_at = $20
		WHERE user_id = $1 AND version = $21
	`

	args, err := economyArgs(rec)
	if err != nil {
		return err
	}
	args = append(args, rec.UpdatedAt, rec.Version)

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save economy record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, rec.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.ErrEconomyNotFound
		}
		return shared.ErrStaleRecord
	}

	rec.Version++
	return nil
}

// Delete removes a user's record. Used by account removal and tests.
func (r *EconomyRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM economy_records WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete economy record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEconomyNotFound
	}
	return nil
}

// Ping checks the underlying connection.
func (r *EconomyRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

func (r *EconomyRepository) exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM economy_records WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check economy record: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Mapping
// ─────────────────────────────────────────────────────────────────────────────

// economyArgs returns the first 19 columns of economyColumns, in order.
func economyArgs(rec *economy.Record) ([]any, error) {
	wagerJSON, err := json.Marshal(rec.DoubleOrNothing)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal double_or_nothing: %w", err)
	}

	completions := rec.DailyQuestCompletions
	if completions == nil {
		completions = []economy.QuestCompletion{}
	}
	completionsJSON, err := json.Marshal(completions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal daily_quest_completions: %w", err)
	}

	return []any{
		rec.UserID,
		rec.Gems,
		rec.Hearts,
		rec.MaxHearts,
		rec.HeartsUpdatedAt,
		rec.UnlimitedHeartsUntil,
		rec.StreakFreezes,
		rec.StreakShieldUntil,
		rec.XPBoosts,
		rec.SuperTrialUsed,
		wagerJSON,
		rec.CurrentStreak,
		rec.LongestStreak,
		rec.LastStreakDate,
		rec.DailyLessonDate,
		rec.DailyXP,
		rec.DailyLessonCount,
		rec.DailyStudySeconds,
		completionsJSON,
	}, nil
}

// scanEconomy scans a row selected with economyColumns. JSON columns that
// fail to decode are treated as absent so the record can still be backfilled.
func scanEconomy(row pgx.Row) (economy.RawRecord, error) {
	var (
		raw             economy.RawRecord
		wagerJSON       []byte
		completionsJSON []byte
	)

	err := row.Scan(
		&raw.UserID,
		&raw.Gems,
		&raw.Hearts,
		&raw.MaxHearts,
		&raw.HeartsUpdatedAt,
		&raw.UnlimitedHeartsUntil,
		&raw.StreakFreezes,
		&raw.StreakShieldUntil,
		&raw.XPBoosts,
		&raw.SuperTrialUsed,
		&wagerJSON,
		&raw.CurrentStreak,
		&raw.LongestStreak,
		&raw.LastStreakDate,
		&raw.DailyLessonDate,
		&raw.DailyXP,
		&raw.DailyLessonCount,
		&raw.DailyStudySeconds,
		&completionsJSON,
		&raw.Version,
		&raw.CreatedAt,
		&raw.UpdatedAt,
	)
	if err != nil {
		return economy.RawRecord{}, err
	}

	raw.DoubleOrNothing = decodeWager(wagerJSON)
	raw.DailyQuestCompletions = decodeCompletions(completionsJSON)

	return raw, nil
}

func decodeWager(data []byte) *economy.DoubleOrNothing {
	if len(data) == 0 {
		return nil
	}
	var w economy.DoubleOrNothing
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	return &w
}

func decodeCompletions(data []byte) []economy.QuestCompletion {
	if len(data) == 0 {
		return nil
	}
	var c []economy.QuestCompletion
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return c
}

var _ economy.Repository = (*EconomyRepository)(nil)
