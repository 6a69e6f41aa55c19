// Package memory реализует хранилище движка квот в памяти процесса.
// Используется в тестах и при локальном запуске без PostgreSQL; все
// условные обновления выполняются под одним мьютексом.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/issue-quota/internal/models"
	"github.com/magabrotheeeer/issue-quota/internal/storage"
)

// Store хранилище в памяти.
type Store struct {
	mu            sync.Mutex
	trials        map[string]models.TrialState
	subscriptions map[string]*models.Subscription
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		trials:        make(map[string]models.TrialState),
		subscriptions: make(map[string]*models.Subscription),
	}
}

func copyTrial(state models.TrialState) *models.TrialState {
	out := models.TrialState{Used: state.Used}
	if state.PeriodStart != nil {
		t := *state.PeriodStart
		out.PeriodStart = &t
	}
	return &out
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// GetUserTrialState возвращает копию счётчиков пробного периода или nil.
func (s *Store) GetUserTrialState(ctx context.Context, userUID string) (*models.TrialState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory.GetUserTrialState: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.trials[userUID]
	if !ok {
		return nil, nil
	}
	return copyTrial(state), nil
}

// SetUserTrialState записывает next, если текущее состояние совпадает с expected.
func (s *Store) SetUserTrialState(ctx context.Context, userUID string, expected *models.TrialState, next models.TrialState) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memory.SetUserTrialState: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.trials[userUID]
	if expected == nil {
		if ok && (current.Used != 0 || current.PeriodStart != nil) {
			return false, nil
		}
	} else {
		if !ok || current.Used != expected.Used || !sameTime(current.PeriodStart, expected.PeriodStart) {
			return false, nil
		}
	}
	s.trials[userUID] = *copyTrial(next)
	return true, nil
}

// CreateSubscription сохраняет подписку и возвращает её ID.
func (s *Store) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("memory.CreateSubscription: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if _, exists := s.subscriptions[sub.ID]; exists {
		return "", fmt.Errorf("memory.CreateSubscription: %w", storage.ErrSubscriptionExists)
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub.UpdatedAt = sub.CreatedAt
	s.subscriptions[sub.ID] = &sub
	return sub.ID, nil
}

// GetSubscription возвращает копию подписки по ID.
func (s *Store) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory.GetSubscription: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetSubscription: %w", storage.ErrSubscriptionNotFound)
	}
	out := *sub
	return &out, nil
}

// userSubscriptions возвращает подписки пользователя, новые первыми. Вызывается под мьютексом.
func (s *Store) userSubscriptions(userUID string) []*models.Subscription {
	var result []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userUID {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result
}

// GetActiveSubscription возвращает последнюю созданную активную подписку пользователя.
func (s *Store) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory.GetActiveSubscription: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.userSubscriptions(userUID) {
		if sub.Status == models.SubscriptionActive {
			out := *sub
			return &out, nil
		}
	}
	return nil, fmt.Errorf("memory.GetActiveSubscription: %w", storage.ErrSubscriptionNotFound)
}

// ListSubscriptions возвращает подписки пользователя с пагинацией.
func (s *Store) ListSubscriptions(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory.ListSubscriptions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.userSubscriptions(userUID)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	result := make([]*models.Subscription, 0, len(all))
	for _, sub := range all {
		out := *sub
		result = append(result, &out)
	}
	return result, nil
}

// FindOverdueSubscriptions возвращает активные подписки с end_date раньше now.
func (s *Store) FindOverdueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory.FindOverdueSubscriptions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status == models.SubscriptionActive && sub.EndDate.Before(now) {
			out := *sub
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EndDate.Equal(result[j].EndDate) {
			return result[i].EndDate.Before(result[j].EndDate)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// UpdateSubscriptionStatus переводит подписку из from в to.
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, from, to models.SubscriptionStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memory.UpdateSubscriptionStatus: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	sub.Status = to
	sub.UpdatedAt = time.Now().UTC()
	return true, nil
}

// IncrementSubscriptionUsedQuota увеличивает used_quota при совпадении expected.
func (s *Store) IncrementSubscriptionUsedQuota(ctx context.Context, id string, expected, ceiling int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memory.IncrementSubscriptionUsedQuota: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok || sub.Status != models.SubscriptionActive ||
		sub.UsedQuota != expected || sub.UsedQuota >= ceiling || sub.UsedQuota >= sub.Quota {
		return false, nil
	}
	sub.UsedQuota++
	sub.UpdatedAt = time.Now().UTC()
	return true, nil
}

// IncrementSubscriptionUsedReissueQuota увеличивает used_reissue_quota при совпадении expected.
func (s *Store) IncrementSubscriptionUsedReissueQuota(ctx context.Context, id string, expected, ceiling int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memory.IncrementSubscriptionUsedReissueQuota: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok || sub.Status != models.SubscriptionActive ||
		sub.UsedReissueQuota != expected || sub.UsedReissueQuota >= ceiling ||
		sub.UsedReissueQuota >= sub.ReissueQuota {
		return false, nil
	}
	sub.UsedReissueQuota++
	sub.UpdatedAt = time.Now().UTC()
	return true, nil
}

// PutSubscription записывает подписку как есть, без проверок. Нужна для подготовки
// данных, нарушающих инварианты (например, used_quota > quota после гонки).
func (s *Store) PutSubscription(sub models.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = &sub
}

// PutTrialState записывает счётчики пробного периода как есть.
func (s *Store) PutTrialState(userUID string, state models.TrialState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials[userUID] = *copyTrial(state)
}

// Ping проверяет только контекст: хранилище в памяти всегда доступно.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
