package models

// Структуры для приёма данных из JSON-запросов, прежде чем конвертировать
// их в доменные модели. Даты приходят строками в формате RFC3339,
// чтобы их можно было валидировать и парсить вручную.

// CreateFeatureRequest запрос на создание фичи каталога.
type CreateFeatureRequest struct {
	Slug               string `json:"slug" validate:"required"`
	Name               string `json:"name" validate:"required"`
	Consumable         bool   `json:"consumable"`
	ResetIntervalType  string `json:"reset_interval_type" validate:"omitempty,oneof=day week month year"`
	ResetIntervalCount int    `json:"reset_interval_count" validate:"omitempty,gte=1"`
}

// CreatePlanRequest запрос на создание плана.
type CreatePlanRequest struct {
	Slug               string `json:"slug" validate:"required"`
	Name               string `json:"name" validate:"required"`
	Price              int64  `json:"price" validate:"gte=0"`
	Currency           string `json:"currency" validate:"required,len=3"`
	IntervalType       string `json:"interval_type" validate:"required,oneof=day week month year"`
	IntervalCount      int    `json:"interval_count" validate:"required,gte=1"`
	TrialIntervalType  string `json:"trial_interval_type" validate:"omitempty,oneof=day week month year"`
	TrialIntervalCount int    `json:"trial_interval_count" validate:"omitempty,gte=1"`
	GraceIntervalType  string `json:"grace_interval_type" validate:"omitempty,oneof=day week month year"`
	GraceIntervalCount int    `json:"grace_interval_count" validate:"omitempty,gte=1"`
}

// AttachFeatureRequest запрос на подключение фичи к плану с квотой юнитов.
// Units == nil означает безлимитную квоту.
type AttachFeatureRequest struct {
	FeatureSlug string `json:"feature_slug" validate:"required"`
	Units       *int64 `json:"units" validate:"omitempty,gte=0"`
}

// SubscribeRequest запрос на оформление подписки на план.
type SubscribeRequest struct {
	PlanSlug       string `json:"plan_slug" validate:"required"`
	Name           string `json:"name" validate:"required"`
	SubscriberKind string `json:"subscriber_kind" validate:"required"`
	SubscriberID   string `json:"subscriber_id" validate:"required"`
	StartsAt       string `json:"starts_at" validate:"omitempty"`
	EndsAt         string `json:"ends_at" validate:"omitempty"`
	SkipTrial      bool   `json:"skip_trial"`
	SkipGrace      bool   `json:"skip_grace"`
	Timezone       string `json:"timezone"`
}

// CancelRequest запрос на отмену подписки.
type CancelRequest struct {
	CancelsAt   string `json:"cancels_at" validate:"omitempty"`
	Immediately bool   `json:"immediately"`
}

// RenewRequest запрос на продление подписки.
type RenewRequest struct {
	EndsAt string `json:"ends_at" validate:"omitempty"`
}

// ChangePlanRequest запрос на смену плана подписки.
// Sync == nil трактуется как true: синхронизировать записи использования.
type ChangePlanRequest struct {
	PlanSlug string `json:"plan_slug" validate:"required"`
	Sync     *bool  `json:"sync"`
}

// UseFeatureRequest запрос на расход юнитов фичи.
// Increment == nil трактуется как true: прибавить юниты к использованным.
type UseFeatureRequest struct {
	FeatureSlug string `json:"feature_slug" validate:"required"`
	Units       int64  `json:"units" validate:"gte=0"`
	Increment   *bool  `json:"increment"`
}

// CanUseFeatureRequest запрос на проверку доступности фичи.
type CanUseFeatureRequest struct {
	FeatureSlug string `json:"feature_slug" validate:"required"`
	Units       int64  `json:"units" validate:"gte=0"`
}
