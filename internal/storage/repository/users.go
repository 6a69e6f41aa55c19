package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// GetUserTrialState возвращает счётчики пробного периода пользователя.
// Если записи пользователя нет, возвращает nil без ошибки.
func (s *Storage) GetUserTrialState(ctx context.Context, userUID string) (*models.TrialState, error) {
	const op = "storage.GetUserTrialState"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT trial_used, trial_period_start
			  FROM users
			  WHERE uid = $1`
	var state models.TrialState
	var periodStart sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&state.Used, &periodStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	state.PeriodStart = timePtr(periodStart)
	return &state, nil
}

// SetUserTrialState записывает счётчики пробного периода, только если текущее
// состояние в базе совпадает с expected. expected == nil означает, что записи нет
// или пробный период ещё не начинался. Возвращает false, если состояние успело измениться.
func (s *Storage) SetUserTrialState(ctx context.Context, userUID string, expected *models.TrialState, next models.TrialState) (bool, error) {
	const op = "storage.SetUserTrialState"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		res sql.Result
		err error
	)
	if expected == nil {
		query := `INSERT INTO users (uid, trial_used, trial_period_start)
				  VALUES ($1, $2, $3)
				  ON CONFLICT (uid) DO UPDATE
				  SET trial_used = EXCLUDED.trial_used,
				      trial_period_start = EXCLUDED.trial_period_start,
				      updated_at = NOW()
				  WHERE users.trial_used = 0 AND users.trial_period_start IS NULL`
		res, err = s.DB.ExecContext(ctx, query, userUID, next.Used, nullTime(next.PeriodStart))
	} else {
		query := `UPDATE users
				  SET trial_used = $2, trial_period_start = $3, updated_at = NOW()
				  WHERE uid = $1
				    AND trial_used = $4
				    AND trial_period_start IS NOT DISTINCT FROM $5::timestamptz`
		res, err = s.DB.ExecContext(ctx, query, userUID, next.Used, nullTime(next.PeriodStart),
			expected.Used, nullTime(expected.PeriodStart))
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}
