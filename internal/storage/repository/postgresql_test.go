package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/issue-quota/internal/models"
	"github.com/magabrotheeeer/issue-quota/internal/storage"
)

func TestStorage_TrialState(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	userUID := uuid.NewString()

	state, err := st.GetUserTrialState(ctx, userUID)
	require.NoError(t, err)
	assert.Nil(t, state, "absent user must have no trial state")

	start := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	ok, err := st.SetUserTrialState(ctx, userUID, nil, models.TrialState{Used: 0, PeriodStart: &start})
	require.NoError(t, err)
	require.True(t, ok)

	state, err = st.GetUserTrialState(ctx, userUID)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.PeriodStart)
	assert.Equal(t, 0, state.Used)
	assert.True(t, state.PeriodStart.Equal(start.Truncate(time.Microsecond)))

	// повторная инициализация при уже начатом окне не проходит
	ok, err = st.SetUserTrialState(ctx, userUID, nil, models.TrialState{Used: 0, PeriodStart: &start})
	require.NoError(t, err)
	assert.False(t, ok)

	// CAS с ожидаемым состоянием, совпадающим с тем, что было записано из памяти
	expected := models.TrialState{Used: 0, PeriodStart: &start}
	ok, err = st.SetUserTrialState(ctx, userUID, &expected, models.TrialState{Used: 1, PeriodStart: &start})
	require.NoError(t, err)
	assert.True(t, ok)

	// устаревшее ожидание
	ok, err = st.SetUserTrialState(ctx, userUID, &expected, models.TrialState{Used: 1, PeriodStart: &start})
	require.NoError(t, err)
	assert.False(t, ok)

	state, err = st.GetUserTrialState(ctx, userUID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Used)
}

func TestStorage_SetUserTrialState_RejectsAboveLimit(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Now()
	_, err := st.SetUserTrialState(ctx, uuid.NewString(), nil, models.TrialState{Used: 4, PeriodStart: &start})
	require.Error(t, err)
}

func TestStorage_GetActiveSubscription(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *TestDataFactory, userUID string) string
		wantErr error
	}{
		{
			name: "most recently created active subscription",
			setup: func(t *testing.T, f *TestDataFactory, userUID string) string {
				f.CreateSubscription(t, userUID, 10, 1, base)
				return f.CreateSubscription(t, userUID, 25, 1, base.Add(time.Hour))
			},
		},
		{
			name: "expired subscriptions are ignored",
			setup: func(t *testing.T, f *TestDataFactory, userUID string) string {
				older := f.CreateSubscription(t, userUID, 10, 1, base)
				newer := f.CreateSubscription(t, userUID, 25, 1, base.Add(time.Hour))
				_, err := f.storage.UpdateSubscriptionStatus(context.Background(), newer,
					models.SubscriptionActive, models.SubscriptionExpired)
				require.NoError(t, err)
				return older
			},
		},
		{
			name:    "no subscriptions",
			setup:   func(_ *testing.T, _ *TestDataFactory, _ string) string { return "" },
			wantErr: storage.ErrSubscriptionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, cleanup := setupTestDatabase(t)
			defer cleanup()

			userUID := uuid.NewString()
			wantID := tt.setup(t, NewTestDataFactory(st), userUID)

			got, err := st.GetActiveSubscription(context.Background(), userUID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, wantID, got.ID)
			assert.Equal(t, models.SubscriptionActive, got.Status)
		})
	}
}

func TestStorage_UpdateSubscriptionStatus_OnlyOnce(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(st)

	id := f.CreateSubscription(t, uuid.NewString(), 10, 1, time.Now().Add(-time.Hour))

	ok, err := st.UpdateSubscriptionStatus(ctx, id, models.SubscriptionActive, models.SubscriptionExpired)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.UpdateSubscriptionStatus(ctx, id, models.SubscriptionActive, models.SubscriptionExpired)
	require.NoError(t, err)
	assert.False(t, ok)

	f.VerifySubscriptionStatus(t, id, models.SubscriptionExpired)

	sub, err := st.GetSubscription(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
}

func TestStorage_IncrementSubscriptionUsedQuota(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(st)

	id := f.CreateSubscription(t, uuid.NewString(), 2, 1, time.Now().Add(-time.Hour))

	ok, err := st.IncrementSubscriptionUsedQuota(ctx, id, 0, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.IncrementSubscriptionUsedQuota(ctx, id, 0, 2)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected value must not apply")

	ok, err = st.IncrementSubscriptionUsedQuota(ctx, id, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.IncrementSubscriptionUsedQuota(ctx, id, 2, 2)
	require.NoError(t, err)
	assert.False(t, ok, "ceiling reached")

	f.VerifyUsedQuota(t, id, 2, 0)

	ok, err = st.IncrementSubscriptionUsedReissueQuota(ctx, id, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.IncrementSubscriptionUsedReissueQuota(ctx, id, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	f.VerifyUsedQuota(t, id, 2, 1)
}

func TestStorage_IncrementSubscriptionUsedQuota_NotActive(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(st)

	id := f.CreateSubscription(t, uuid.NewString(), 5, 1, time.Now().Add(-time.Hour))
	_, err := st.UpdateSubscriptionStatus(ctx, id, models.SubscriptionActive, models.SubscriptionCancelled)
	require.NoError(t, err)

	ok, err := st.IncrementSubscriptionUsedQuota(ctx, id, 0, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_IncrementSubscriptionUsedQuota_Concurrent(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(st)

	const quota = 5
	id := f.CreateSubscription(t, uuid.NewString(), quota, 0, time.Now().Add(-time.Hour))

	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				sub, err := st.GetSubscription(ctx, id)
				if err != nil || sub.UsedQuota >= sub.Quota {
					return
				}
				ok, err := st.IncrementSubscriptionUsedQuota(ctx, id, sub.UsedQuota, sub.Quota)
				if err != nil {
					return
				}
				if ok {
					granted.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(quota), granted.Load())
	f.VerifyUsedQuota(t, id, quota, 0)
}

func TestStorage_CreateSubscription_Duplicate(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Now()
	sub := models.Subscription{
		ID:        uuid.NewString(),
		UserID:    uuid.NewString(),
		ProductID: "basic",
		StartDate: start,
		EndDate:   start.AddDate(0, 1, 0),
		Quota:     5,
	}
	_, err := st.CreateSubscription(ctx, sub)
	require.NoError(t, err)

	_, err = st.CreateSubscription(ctx, sub)
	require.ErrorIs(t, err, storage.ErrSubscriptionExists)

	list, err := st.ListSubscriptions(ctx, sub.UserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.SubscriptionActive, list[0].Status)
}

func TestStorage_FindOverdueSubscriptions(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(st)
	now := time.Now().UTC()
	userUID := uuid.NewString()

	oldest := f.CreateSubscription(t, userUID, 5, 1, now.AddDate(0, -3, 0))
	older := f.CreateSubscription(t, userUID, 5, 1, now.AddDate(0, -2, 0))
	f.CreateSubscription(t, userUID, 5, 1, now.Add(-time.Hour))
	expired := f.CreateSubscription(t, uuid.NewString(), 5, 1, now.AddDate(0, -4, 0))
	ok, err := st.UpdateSubscriptionStatus(ctx, expired, models.SubscriptionActive, models.SubscriptionExpired)
	require.NoError(t, err)
	require.True(t, ok)

	subs, err := st.FindOverdueSubscriptions(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, oldest, subs[0].ID)
	assert.Equal(t, older, subs[1].ID)

	subs, err = st.FindOverdueSubscriptions(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, oldest, subs[0].ID)
}
