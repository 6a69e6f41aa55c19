package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
	"github.com/magabrotheeeer/issue-quota/internal/quota"
)

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireOverdue(ctx context.Context, finder quota.OverdueFinder, limit int) (int, error) {
	args := m.Called(ctx, finder, limit)
	return args.Int(0), args.Error(1)
}

type stubFinder struct{}

func (stubFinder) FindOverdueSubscriptions(context.Context, time.Time, int) ([]*models.Subscription, error) {
	return nil, nil
}

func TestSchedulerService_runExpireOverdue(t *testing.T) {
	tests := []struct {
		name      string
		results   []int
		err       error
		wantTotal int
		wantCalls int
	}{
		{
			name:      "nothing to expire",
			results:   []int{0},
			wantTotal: 0,
			wantCalls: 1,
		},
		{
			name:      "partial batch stops the run",
			results:   []int{2},
			wantTotal: 2,
			wantCalls: 1,
		},
		{
			name:      "full batches drain the backlog",
			results:   []int{3, 3, 1},
			wantTotal: 7,
			wantCalls: 3,
		},
		{
			name:      "store error stops the run",
			results:   []int{1},
			err:       errors.New("store unavailable"),
			wantTotal: 1,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expirer := new(MockExpirer)
			finder := stubFinder{}
			for i, n := range tt.results {
				var err error
				if i == len(tt.results)-1 {
					err = tt.err
				}
				expirer.On("ExpireOverdue", mock.Anything, finder, 3).Return(n, err).Once()
			}

			s := NewSchedulerService(expirer, finder, sl.Discard(), time.Hour, 3)
			total := s.runExpireOverdue(context.Background())

			assert.Equal(t, tt.wantTotal, total)
			expirer.AssertNumberOfCalls(t, "ExpireOverdue", tt.wantCalls)
			expirer.AssertExpectations(t)
		})
	}
}

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) ExpireOverdue(context.Context, quota.OverdueFinder, int) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestSchedulerService_RunStopsOnCancel(t *testing.T) {
	expirer := &countingExpirer{}
	s := NewSchedulerService(expirer, stubFinder{}, sl.Discard(), 10*time.Millisecond, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return expirer.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
