package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/issue-quota/internal/models"
	"github.com/magabrotheeeer/issue-quota/internal/storage"
)

const subscriptionColumns = `id, user_uid, product_id, status, start_date, end_date,
	quota, used_quota, reissue_quota, used_reissue_quota, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.ProductID, &sub.Status, &sub.StartDate, &sub.EndDate,
		&sub.Quota, &sub.UsedQuota, &sub.ReissueQuota, &sub.UsedReissueQuota,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

// CreateSubscription вставляет новую подписку и возвращает её ID.
// Пустой ID генерируется, пустой статус заменяется на active.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	query := `INSERT INTO subscriptions (id, user_uid, product_id, status, start_date, end_date,
			      quota, used_quota, reissue_quota, used_reissue_quota, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`
	_, err := s.DB.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProductID, sub.Status, dbTime(sub.StartDate), dbTime(sub.EndDate),
		sub.Quota, sub.UsedQuota, sub.ReissueQuota, sub.UsedReissueQuota, dbTime(sub.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("%s: %w", op, storage.ErrSubscriptionExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sub.ID, nil
}

// GetSubscription возвращает подписку по ID вне зависимости от статуса.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetActiveSubscription возвращает последнюю по времени создания подписку
// пользователя со статусом active.
func (s *Storage) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1 AND status = $2
			  ORDER BY created_at DESC, id DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID, models.SubscriptionActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptions возвращает все подписки пользователя, новые первыми, с пагинацией.
func (s *Storage) ListSubscriptions(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindOverdueSubscriptions возвращает активные подписки, у которых end_date раньше now,
// самые старые первыми, не больше limit штук.
func (s *Storage) FindOverdueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	const op = "storage.FindOverdueSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE status = $1 AND end_date < $2
			  ORDER BY end_date, id
			  LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, query, models.SubscriptionActive, dbTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateSubscriptionStatus переводит подписку из статуса from в статус to.
// Возвращает false, если текущий статус уже не from.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id string, from, to models.SubscriptionStatus) (bool, error) {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $2, updated_at = NOW()
			  WHERE id = $1 AND status = $3`
	res, err := s.DB.ExecContext(ctx, query, id, to, from)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// IncrementSubscriptionUsedQuota увеличивает used_quota на единицу, только если подписка
// активна, текущее значение равно expected и меньше ceiling.
func (s *Storage) IncrementSubscriptionUsedQuota(ctx context.Context, id string, expected, ceiling int) (bool, error) {
	const op = "storage.IncrementSubscriptionUsedQuota"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET used_quota = used_quota + 1, updated_at = NOW()
			  WHERE id = $1 AND status = $2
			    AND used_quota = $3 AND used_quota < $4 AND used_quota < quota`
	res, err := s.DB.ExecContext(ctx, query, id, models.SubscriptionActive, expected, ceiling)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// IncrementSubscriptionUsedReissueQuota увеличивает used_reissue_quota на единицу
// при тех же условиях, что и IncrementSubscriptionUsedQuota.
func (s *Storage) IncrementSubscriptionUsedReissueQuota(ctx context.Context, id string, expected, ceiling int) (bool, error) {
	const op = "storage.IncrementSubscriptionUsedReissueQuota"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET used_reissue_quota = used_reissue_quota + 1, updated_at = NOW()
			  WHERE id = $1 AND status = $2
			    AND used_reissue_quota = $3 AND used_reissue_quota < $4
			    AND used_reissue_quota < reissue_quota`
	res, err := s.DB.ExecContext(ctx, query, id, models.SubscriptionActive, expected, ceiling)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}
