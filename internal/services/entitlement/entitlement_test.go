package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/period"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

type UsageRepoMock struct{ mock.Mock }

func (m *UsageRepoMock) FindUsage(ctx context.Context, subscriptionID, featureID int64) (*models.FeatureUsage, error) {
	args := m.Called(ctx, subscriptionID, featureID)
	usage, _ := args.Get(0).(*models.FeatureUsage)
	return usage, args.Error(1)
}

func (m *UsageRepoMock) FirstOrCreateUsage(ctx context.Context, usage models.FeatureUsage) (*models.FeatureUsage, bool, error) {
	args := m.Called(ctx, usage)
	result, _ := args.Get(0).(*models.FeatureUsage)
	return result, args.Bool(1), args.Error(2)
}

func (m *UsageRepoMock) UpdateUsage(ctx context.Context, usage *models.FeatureUsage) (int64, error) {
	args := m.Called(ctx, usage)
	return args.Get(0).(int64), args.Error(1)
}

func (m *UsageRepoMock) SetUsageActive(ctx context.Context, subscriptionID, featureID int64, active bool) (int64, error) {
	args := m.Called(ctx, subscriptionID, featureID, active)
	return args.Get(0).(int64), args.Error(1)
}

func (m *UsageRepoMock) ListUsageBySubscription(ctx context.Context, subscriptionID int64) ([]*models.FeatureUsage, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).([]*models.FeatureUsage), args.Error(1)
}

type SubRepoMock struct{ mock.Mock }

func (m *SubRepoMock) FindSubscriptionBySlug(ctx context.Context, slug string) (*models.Subscription, error) {
	args := m.Called(ctx, slug)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

type PlanRepoMock struct{ mock.Mock }

func (m *PlanRepoMock) FindPlanByID(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	plan, _ := args.Get(0).(*models.Plan)
	return plan, args.Error(1)
}

type EventsMock struct {
	mock.Mock
	published []models.Event
}

func (m *EventsMock) Publish(event models.Event) {
	m.Called(event)
	m.published = append(m.published, event)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type fixture struct {
	usage  *UsageRepoMock
	subs   *SubRepoMock
	plans  *PlanRepoMock
	events *EventsMock
	svc    *Service
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		usage:  new(UsageRepoMock),
		subs:   new(SubRepoMock),
		plans:  new(PlanRepoMock),
		events: new(EventsMock),
	}
	f.svc = New(f.usage, f.subs, f.plans, f.events, clock.FixedAt(now), NewNoopLogger())
	return f
}

var (
	testNow     = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	testCreated = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	testSubEnd  = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
)

func testSubscription() *models.Subscription {
	return &models.Subscription{
		ID:         10,
		Slug:       "s-1",
		PlanID:     1,
		Subscriber: models.SubscriberRef{Kind: "user", ID: "u-1"},
		StartsAt:   &testCreated,
		EndsAt:     &testSubEnd,
		CreatedAt:  testCreated,
	}
}

func testPlan(features ...models.PlanFeature) *models.Plan {
	return &models.Plan{
		ID:       1,
		Slug:     "gold",
		Active:   true,
		Interval: period.Interval{Type: period.Month, Count: 1},
		Features: features,
	}
}

func quota(units int64) *int64 { return &units }

func consumableFeature() models.PlanFeature {
	return models.PlanFeature{
		Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: true},
		Units:   quota(100),
	}
}

func booleanFeature() models.PlanFeature {
	return models.PlanFeature{
		Feature: models.Feature{ID: 21, Slug: "sso", Active: true},
	}
}

func TestUseFeature(t *testing.T) {
	sub := testSubscription()

	tests := []struct {
		name        string
		planFeature models.PlanFeature
		req         models.UseFeatureRequest
		setupMocks  func(f *fixture, pf models.PlanFeature)
		wantUsed    int64
		wantReason  models.CannotUseFeatureReason
		wantErr     bool
	}{
		{
			name:        "increment accumulates",
			planFeature: consumableFeature(),
			req:         models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 30},
			setupMocks: func(f *fixture, pf models.PlanFeature) {
				existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 40, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
				f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
				f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
				f.events.On("Publish", mock.Anything).Return()
			},
			wantUsed: 70,
		},
		{
			name:        "overwrite sets counter",
			planFeature: consumableFeature(),
			req: models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 30,
				Increment: func() *bool { b := false; return &b }()},
			setupMocks: func(f *fixture, pf models.PlanFeature) {
				existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 40, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
				f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
				f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
				f.events.On("Publish", mock.Anything).Return()
			},
			wantUsed: 30,
		},
		{
			name:        "insufficient balance",
			planFeature: consumableFeature(),
			req:         models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 70},
			setupMocks: func(f *fixture, pf models.PlanFeature) {
				existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 40, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
			},
			wantErr:    true,
			wantReason: models.ReasonInsufficientBalance,
		},
		{
			name: "inactive feature",
			planFeature: models.PlanFeature{
				Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: false},
				Units:   quota(100),
			},
			req:        models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 10},
			setupMocks: func(f *fixture, pf models.PlanFeature) {},
			wantErr:    true,
			wantReason: models.ReasonInactiveFeature,
		},
		{
			name:        "deactivated usage entry",
			planFeature: consumableFeature(),
			req:         models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 10},
			setupMocks: func(f *fixture, pf models.PlanFeature) {
				existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 0, Active: false, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
			},
			wantErr:    true,
			wantReason: models.ReasonUsageDeactivated,
		},
		{
			name:        "boolean feature does not touch counter",
			planFeature: booleanFeature(),
			req:         models.UseFeatureRequest{FeatureSlug: "sso", Units: 0},
			setupMocks: func(f *fixture, pf models.PlanFeature) {
				existing := &models.FeatureUsage{ID: 2, SubscriptionID: 10, FeatureID: 21,
					Used: 0, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(21)).Return(existing, nil).Once()
				f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
				f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
				f.events.On("Publish", mock.Anything).Return()
			},
			wantUsed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testNow)
			plan := testPlan(tt.planFeature)
			f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
			f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
			tt.setupMocks(f, tt.planFeature)

			usage, err := f.svc.UseFeature(context.Background(), "s-1", tt.req)

			if tt.wantErr {
				assert.Error(t, err)
				var cannotUse *models.CannotUseFeatureError
				assert.ErrorAs(t, err, &cannotUse)
				assert.Equal(t, tt.wantReason, cannotUse.Reason)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantUsed, usage.Used)
				assert.Len(t, f.events.published, 1)
				assert.Equal(t, "feature.used", f.events.published[0].EventName())
			}
			f.usage.AssertExpectations(t)
		})
	}
}

func TestUseFeature_UnknownFeature(t *testing.T) {
	f := newFixture(testNow)
	f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(testSubscription(), nil).Once()
	f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(testPlan(), nil).Once()

	_, err := f.svc.UseFeature(context.Background(), "s-1",
		models.UseFeatureRequest{FeatureSlug: "ghost", Units: 1})

	var notFound *models.FeatureNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.FeatureSlug)
}

func TestUseFeature_ResetWindow(t *testing.T) {
	sub := testSubscription()
	withReset := models.PlanFeature{
		Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: true,
			ResetInterval: &period.Interval{Type: period.Week, Count: 1}},
		Units: quota(100),
	}

	t.Run("new entry anchors reset on subscription creation", func(t *testing.T) {
		f := newFixture(testNow)
		plan := testPlan(withReset)
		created := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
			Used: 0, Active: true, EndsAt: &testSubEnd}
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
		f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(nil, nil).Once()
		f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(created, true, nil).Once()
		f.usage.On("UpdateUsage", mock.Anything, created).Return(int64(1), nil).Once()
		f.events.On("Publish", mock.Anything).Return()

		usage, err := f.svc.UseFeature(context.Background(), "s-1",
			models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 10})

		assert.NoError(t, err)
		assert.Equal(t, testCreated.AddDate(0, 0, 7), *usage.EndsAt)
		assert.Equal(t, int64(10), usage.Used)
	})

	t.Run("ended window rolls forward and resets counter", func(t *testing.T) {
		f := newFixture(testNow)
		plan := testPlan(withReset)
		endedAt := testNow.AddDate(0, 0, -2)
		existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
			Used: 90, Active: true, EndsAt: &endedAt}
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
		f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
		f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
		f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
		f.events.On("Publish", mock.Anything).Return()

		usage, err := f.svc.UseFeature(context.Background(), "s-1",
			models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 10})

		assert.NoError(t, err)
		assert.Equal(t, endedAt.AddDate(0, 0, 7), *usage.EndsAt)
		assert.Equal(t, int64(10), usage.Used)
	})

	t.Run("running window keeps its deadline", func(t *testing.T) {
		f := newFixture(testNow)
		plan := testPlan(withReset)
		deadline := testNow.AddDate(0, 0, 3)
		existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
			Used: 40, Active: true, EndsAt: &deadline}
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
		f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
		f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
		f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
		f.events.On("Publish", mock.Anything).Return()

		usage, err := f.svc.UseFeature(context.Background(), "s-1",
			models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 10})

		assert.NoError(t, err)
		assert.Equal(t, deadline, *usage.EndsAt)
		assert.Equal(t, int64(50), usage.Used)
	})

	t.Run("ended window frees quota for validation", func(t *testing.T) {
		// Остаток считается по нулевому расходу, даже если прежнее
		// окно было почти исчерпано.
		f := newFixture(testNow)
		plan := testPlan(withReset)
		endedAt := testNow.AddDate(0, 0, -2)
		existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
			Used: 95, Active: true, EndsAt: &endedAt}
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
		f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
		f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
		f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
		f.events.On("Publish", mock.Anything).Return()

		usage, err := f.svc.UseFeature(context.Background(), "s-1",
			models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 80})

		assert.NoError(t, err)
		assert.Equal(t, int64(80), usage.Used)
	})
}

func TestSetUsedUnits(t *testing.T) {
	f := newFixture(testNow)
	sub := testSubscription()
	plan := testPlan(consumableFeature())
	existing := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
		Used: 70, Active: true, EndsAt: &testSubEnd}
	f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
	f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
	f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(existing, nil).Once()
	f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
	f.usage.On("UpdateUsage", mock.Anything, existing).Return(int64(1), nil).Once()
	f.events.On("Publish", mock.Anything).Return()

	usage, err := f.svc.SetUsedUnits(context.Background(), "s-1", "api-calls", 25)

	assert.NoError(t, err)
	assert.Equal(t, int64(25), usage.Used)
}

func TestCanUseFeature(t *testing.T) {
	sub := testSubscription()

	tests := []struct {
		name        string
		planFeature *models.PlanFeature
		units       int64
		setupMocks  func(f *fixture)
		want        bool
	}{
		{
			name:        "feature not granted by plan",
			planFeature: nil,
			units:       1,
			setupMocks:  func(f *fixture) {},
			want:        false,
		},
		{
			name: "feature switched off",
			planFeature: &models.PlanFeature{
				Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: false},
				Units:   quota(100),
			},
			units:      1,
			setupMocks: func(f *fixture) {},
			want:       false,
		},
		{
			name:        "no ledger entry",
			planFeature: func() *models.PlanFeature { pf := consumableFeature(); return &pf }(),
			units:       1,
			setupMocks: func(f *fixture) {
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(nil, nil).Once()
			},
			want: false,
		},
		{
			name:        "deactivated ledger entry",
			planFeature: func() *models.PlanFeature { pf := consumableFeature(); return &pf }(),
			units:       1,
			setupMocks: func(f *fixture) {
				entry := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20, Active: false}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(entry, nil).Once()
			},
			want: false,
		},
		{
			name:        "boolean feature with entry",
			planFeature: func() *models.PlanFeature { pf := booleanFeature(); return &pf }(),
			units:       0,
			setupMocks: func(f *fixture) {
				entry := &models.FeatureUsage{ID: 2, SubscriptionID: 10, FeatureID: 21, Active: true}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(21)).Return(entry, nil).Once()
			},
			want: true,
		},
		{
			name:        "enough balance",
			planFeature: func() *models.PlanFeature { pf := consumableFeature(); return &pf }(),
			units:       60,
			setupMocks: func(f *fixture) {
				entry := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 40, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(entry, nil).Once()
			},
			want: true,
		},
		{
			name:        "not enough balance",
			planFeature: func() *models.PlanFeature { pf := consumableFeature(); return &pf }(),
			units:       61,
			setupMocks: func(f *fixture) {
				entry := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 40, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(entry, nil).Once()
			},
			want: false,
		},
		{
			name: "unlimited quota",
			planFeature: &models.PlanFeature{
				Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: true},
			},
			units: 1000000,
			setupMocks: func(f *fixture) {
				entry := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 40, Active: true, EndsAt: &testSubEnd}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(entry, nil).Once()
			},
			want: true,
		},
		{
			name:        "ended window counts as unused",
			planFeature: func() *models.PlanFeature { pf := consumableFeature(); return &pf }(),
			units:       100,
			setupMocks: func(f *fixture) {
				endedAt := testNow.AddDate(0, 0, -1)
				entry := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
					Used: 95, Active: true, EndsAt: &endedAt}
				f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(entry, nil).Once()
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testNow)
			var plan *models.Plan
			featureSlug := "api-calls"
			if tt.planFeature != nil {
				plan = testPlan(*tt.planFeature)
				featureSlug = tt.planFeature.Feature.Slug
			} else {
				plan = testPlan()
			}
			f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
			f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
			tt.setupMocks(f)

			got, err := f.svc.CanUseFeature(context.Background(), "s-1",
				models.CanUseFeatureRequest{FeatureSlug: featureSlug, Units: tt.units})

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			f.usage.AssertExpectations(t)
		})
	}
}

func TestRemainingUnits(t *testing.T) {
	sub := testSubscription()
	plan := testPlan(consumableFeature())

	f := newFixture(testNow)
	entry := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20,
		Used: 40, Active: true, EndsAt: &testSubEnd}
	f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Twice()
	f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Twice()
	f.usage.On("FindUsage", mock.Anything, int64(10), int64(20)).Return(entry, nil).Once()

	remaining, err := f.svc.RemainingUnits(context.Background(), "s-1", "api-calls")

	assert.NoError(t, err)
	assert.Equal(t, int64(60), remaining)
}

func TestMaxFeatureUnits_Unlimited(t *testing.T) {
	sub := testSubscription()
	plan := testPlan(models.PlanFeature{
		Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: true},
	})

	f := newFixture(testNow)
	f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
	f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()

	maxUnits, err := f.svc.MaxFeatureUnits(context.Background(), "s-1", "api-calls")

	assert.NoError(t, err)
	assert.Equal(t, int64(0), maxUnits)
}

func TestActivateDeactivateFeature(t *testing.T) {
	sub := testSubscription()

	t.Run("deactivate creates entry when missing", func(t *testing.T) {
		f := newFixture(testNow)
		plan := testPlan(consumableFeature())
		created := &models.FeatureUsage{ID: 1, SubscriptionID: 10, FeatureID: 20, Active: true}
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()
		f.usage.On("FirstOrCreateUsage", mock.Anything, mock.Anything).Return(created, true, nil).Once()
		f.usage.On("SetUsageActive", mock.Anything, int64(10), int64(20), false).Return(int64(1), nil).Once()

		ok, err := f.svc.DeactivateFeature(context.Background(), "s-1", "api-calls")

		assert.NoError(t, err)
		assert.True(t, ok)
		f.usage.AssertExpectations(t)
	})

	t.Run("activate on feature outside plan", func(t *testing.T) {
		f := newFixture(testNow)
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(testPlan(), nil).Once()

		ok, err := f.svc.ActivateFeature(context.Background(), "s-1", "ghost")

		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("activate on switched off feature", func(t *testing.T) {
		f := newFixture(testNow)
		plan := testPlan(models.PlanFeature{
			Feature: models.Feature{ID: 20, Slug: "api-calls", Consumable: true, Active: false},
			Units:   quota(100),
		})
		f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").Return(sub, nil).Once()
		f.plans.On("FindPlanByID", mock.Anything, int64(1)).Return(plan, nil).Once()

		ok, err := f.svc.ActivateFeature(context.Background(), "s-1", "api-calls")

		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUseFeature_UnknownSubscription(t *testing.T) {
	f := newFixture(testNow)
	f.subs.On("FindSubscriptionBySlug", mock.Anything, "ghost").Return(nil, nil).Once()

	_, err := f.svc.UseFeature(context.Background(), "ghost",
		models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 1})

	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestUseFeature_RepositoryError(t *testing.T) {
	f := newFixture(testNow)
	f.subs.On("FindSubscriptionBySlug", mock.Anything, "s-1").
		Return(nil, errors.New("connection refused")).Once()

	_, err := f.svc.UseFeature(context.Background(), "s-1",
		models.UseFeatureRequest{FeatureSlug: "api-calls", Units: 1})

	assert.Error(t, err)
}
