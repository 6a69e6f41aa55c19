package quota

import (
	"context"
	"time"

	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// TrialTracker ведёт бесплатный пробный лимит: TrialLimit действий на окно TrialWindow.
type TrialTracker struct {
	*base
}

// Status возвращает состояние пробного периода. Если окно не начиналось или истекло,
// оно сбрасывается (used = 0, начало окна = сейчас) и сброс сохраняется до возврата.
// При недоступности хранилища пробный лимит считается недоступным.
func (t *TrialTracker) Status(ctx context.Context, userUID string) (models.TrialStatus, error) {
	status, _, err := t.status(ctx, userUID)
	return status, err
}

// status возвращает вычисленный статус и сохранённое состояние, на которое
// опирается последующая условная запись.
func (t *TrialTracker) status(ctx context.Context, userUID string) (models.TrialStatus, models.TrialState, error) {
	const op = "quota.TrialTracker.Status"

	for range MaxConflictRetries {
		stored, err := t.load(ctx, userUID)
		if err != nil {
			return t.unavailable(), models.TrialState{}, t.storeFailure(op, userUID, err)
		}

		now := t.clock.Now()
		if !windowExpired(stored, now) {
			return t.build(op, userUID, *stored), *stored, nil
		}

		start := now
		next := models.TrialState{Used: 0, PeriodStart: &start}
		ok, err := t.save(ctx, userUID, stored, next)
		if err != nil {
			return t.unavailable(), models.TrialState{}, t.storeFailure(op, userUID, err)
		}
		if ok {
			return t.build(op, userUID, next), next, nil
		}
		t.metrics.Conflict(op)
	}

	t.conflictsExhausted(op, userUID)
	return t.unavailable(), models.TrialState{}, nil
}

// Consume списывает одно бесплатное действие. Возвращает true, только если
// увеличенный счётчик был сохранён.
func (t *TrialTracker) Consume(ctx context.Context, userUID string) (bool, error) {
	ok, _, err := t.consume(ctx, userUID)
	return ok, err
}

// consume дополнительно возвращает остаток после списания.
func (t *TrialTracker) consume(ctx context.Context, userUID string) (bool, int, error) {
	const op = "quota.TrialTracker.Consume"

	for range MaxConflictRetries {
		status, state, err := t.status(ctx, userUID)
		if err != nil {
			return false, 0, err
		}
		if !status.Available {
			return false, status.Remaining, nil
		}

		next := models.TrialState{
			Used:        min(state.Used+1, TrialLimit),
			PeriodStart: state.PeriodStart,
		}
		ok, err := t.save(ctx, userUID, &state, next)
		if err != nil {
			return false, 0, t.storeFailure(op, userUID, err)
		}
		if ok {
			return true, TrialLimit - next.Used, nil
		}
		t.metrics.Conflict(op)
	}

	t.conflictsExhausted(op, userUID)
	return false, 0, nil
}

func (t *TrialTracker) load(ctx context.Context, userUID string) (*models.TrialState, error) {
	ctx, cancel := t.storeCtx(ctx)
	defer cancel()
	return t.store.GetUserTrialState(ctx, userUID)
}

func (t *TrialTracker) save(ctx context.Context, userUID string, expected *models.TrialState, next models.TrialState) (bool, error) {
	ctx, cancel := t.storeCtx(ctx)
	defer cancel()
	return t.store.SetUserTrialState(ctx, userUID, expected, next)
}

func (t *TrialTracker) build(op, userUID string, state models.TrialState) models.TrialStatus {
	remaining := t.clampRemaining(op, "trial_used", userUID, state.Used, TrialLimit)
	status := models.TrialStatus{
		Available: remaining > 0,
		Remaining: remaining,
		Used:      state.Used,
		Total:     TrialLimit,
	}
	if state.PeriodStart != nil {
		status.PeriodStart = *state.PeriodStart
		status.ResetAt = state.PeriodStart.Add(TrialWindow)
	}
	return status
}

func (t *TrialTracker) unavailable() models.TrialStatus {
	return models.TrialStatus{Total: TrialLimit}
}

// windowExpired сообщает, что окно не начиналось или с его начала прошло не меньше TrialWindow.
func windowExpired(state *models.TrialState, now time.Time) bool {
	if state == nil || state.PeriodStart == nil {
		return true
	}
	return now.Sub(*state.PeriodStart) >= TrialWindow
}
