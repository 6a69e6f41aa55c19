package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/issue-quota/internal/migrations"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// setupTestDatabase поднимает контейнер PostgreSQL и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err, "failed to create storage")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath), "failed to apply migrations")

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateSubscription создает активную подписку пользователя и возвращает её ID
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID string, quota, reissueQuota int,
	createdAt time.Time) string {
	id, err := f.storage.CreateSubscription(context.Background(), models.Subscription{
		ID:           uuid.NewString(),
		UserID:       userUID,
		ProductID:    "basic",
		Status:       models.SubscriptionActive,
		StartDate:    createdAt,
		EndDate:      createdAt.AddDate(0, 1, 0),
		Quota:        quota,
		ReissueQuota: reissueQuota,
		CreatedAt:    createdAt,
	})
	require.NoError(t, err)
	return id
}

// VerifySubscriptionStatus проверяет статус подписки в БД
func (f *TestDataFactory) VerifySubscriptionStatus(t *testing.T, id string, expected models.SubscriptionStatus) {
	var status string
	err := f.storage.DB.QueryRow("SELECT status FROM subscriptions WHERE id = $1", id).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, string(expected), status)
}

// VerifyUsedQuota проверяет счётчики подписки в БД
func (f *TestDataFactory) VerifyUsedQuota(t *testing.T, id string, expectedUsed, expectedReissue int) {
	var used, reissue int
	err := f.storage.DB.QueryRow("SELECT used_quota, used_reissue_quota FROM subscriptions WHERE id = $1", id).
		Scan(&used, &reissue)
	require.NoError(t, err)
	require.Equal(t, expectedUsed, used)
	require.Equal(t, expectedReissue, reissue)
}
