package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type ListerMock struct {
	mock.Mock
}

func (m *ListerMock) ListEndingWithin(ctx context.Context, window time.Duration) ([]*models.Subscription, error) {
	args := m.Called(ctx, window)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Error(1)
}

func (m *ListerMock) ListOverdue(ctx context.Context) ([]*models.Subscription, error) {
	args := m.Called(ctx)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Error(1)
}

type EventsMock struct {
	mock.Mock
	published []models.Event
}

func (m *EventsMock) Publish(event models.Event) {
	m.published = append(m.published, event)
	m.Called(event)
}

func TestScan(t *testing.T) {
	endsAt := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		Slug:       "sub-gold",
		Subscriber: models.SubscriberRef{Kind: "user", ID: "42"},
		EndsAt:     &endsAt,
	}

	tests := []struct {
		name       string
		setupMocks func(lister *ListerMock, events *EventsMock)
		wantEvents int
	}{
		{
			name: "публикует напоминание для заканчивающейся подписки",
			setupMocks: func(lister *ListerMock, events *EventsMock) {
				lister.On("ListEndingWithin", mock.Anything, 24*time.Hour).
					Return([]*models.Subscription{sub}, nil)
				lister.On("ListOverdue", mock.Anything).
					Return([]*models.Subscription{}, nil)
				events.On("Publish", mock.Anything).Return()
			},
			wantEvents: 1,
		},
		{
			name: "ничего не публикует при пустой выборке",
			setupMocks: func(lister *ListerMock, events *EventsMock) {
				lister.On("ListEndingWithin", mock.Anything, 24*time.Hour).
					Return([]*models.Subscription{}, nil)
				lister.On("ListOverdue", mock.Anything).
					Return([]*models.Subscription{}, nil)
			},
			wantEvents: 0,
		},
		{
			name: "ошибка выборки не приводит к публикациям",
			setupMocks: func(lister *ListerMock, events *EventsMock) {
				lister.On("ListEndingWithin", mock.Anything, 24*time.Hour).
					Return(nil, errors.New("connection refused"))
			},
			wantEvents: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := new(ListerMock)
			events := new(EventsMock)
			tt.setupMocks(lister, events)

			svc := New(lister, events, NewNoopLogger(), 24*time.Hour)
			svc.scan(context.Background())

			require.Len(t, events.published, tt.wantEvents)
			if tt.wantEvents > 0 {
				expiring, ok := events.published[0].(models.SubscriptionExpiring)
				require.True(t, ok)
				assert.Equal(t, "sub-gold", expiring.SubscriptionSlug)
				assert.Equal(t, sub.Subscriber, expiring.Subscriber)
				assert.Equal(t, &endsAt, expiring.EndsAt)
			}
			lister.AssertExpectations(t)
		})
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	lister := new(ListerMock)
	events := new(EventsMock)
	lister.On("ListEndingWithin", mock.Anything, mock.Anything).
		Return([]*models.Subscription{}, nil)
	lister.On("ListOverdue", mock.Anything).
		Return([]*models.Subscription{}, nil)

	svc := New(lister, events, NewNoopLogger(), 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
