// Package trigger implements the Trigger Store (C3) and Trigger Service (C6)
// from spec §4.3 and §4.6: CRUD, validation, lifecycle, cron scheduling,
// webhook ingestion wiring, condition evaluation, and consecutive-failure
// auto-disable. The polymorphic cron/webhook trigger is modeled as a tagged
// variant with a shared header (spec §9 design note), persisted as one wide
// row with nullable type-specific columns — the approach compozy-compozy
// uses for its own webhook.Config/EventConfig rows.
package trigger

import "time"

// Kind discriminates the trigger variant.
type Kind string

const (
	KindCron    Kind = "cron"
	KindWebhook Kind = "webhook"
)

// ExecutionStatus is the outcome recorded for a single trigger execution.
type ExecutionStatus string

const (
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimeout   ExecutionStatus = "timeout"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// WebhookType selects the provider-specific payload parser (spec §4.5).
type WebhookType string

const (
	WebhookGeneric  WebhookType = "generic"
	WebhookTelegram WebhookType = "telegram"
	WebhookSlack    WebhookType = "slack"
	WebhookGitHub   WebhookType = "github"
	WebhookDiscord  WebhookType = "discord"
	WebhookStripe   WebhookType = "stripe"
)

// Trigger is the polymorphic entity of spec §3. Cron- and webhook-specific
// fields are pointers so the zero value of the "other" variant never
// pollutes JSON/SQL output; validation enforces exactly one variant's fields
// are populated based on Kind.
type Trigger struct {
	ID          string
	WorkspaceID string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Kind            Kind
	Name            string
	Description     string
	AgentID         string
	IsActive        bool
	TaskParameters  map[string]any
	Conditions      map[string]any
	FailureThreshold int
	ConsecutiveFailures int
	LastExecutionAt *time.Time

	// Cron variant
	CronExpression *string
	Timezone       *string
	NextRunTime    *time.Time

	// Webhook variant
	WebhookID        *string
	AllowedMethods   []string
	WebhookType      *WebhookType
	ValidationRules  map[string]any
	WebhookConfig    map[string]any
}

// TriggerExecution is the append-only execution record of spec §3.
type TriggerExecution struct {
	ID              string
	TriggerID       string
	ExecutedAt      time.Time
	Status          ExecutionStatus
	TaskID          *string
	ExecutionTimeMs int64
	ErrorMessage    *string
	TriggerData     map[string]any
	WorkflowID      *string
	RunID           *string
}

// Create is the input shape for trigger creation, split by variant for
// ergonomic construction at the HTTP boundary.
type Create struct {
	Kind             Kind
	Name             string
	Description      string
	AgentID          string
	TaskParameters   map[string]any
	Conditions       map[string]any
	FailureThreshold int

	CronExpression string
	Timezone       string

	WebhookID       string
	AllowedMethods  []string
	WebhookType     WebhookType
	ValidationRules map[string]any
	WebhookConfig   map[string]any
}

// Update is a partial update; nil fields are left unchanged.
type Update struct {
	Name             *string
	Description      *string
	IsActive         *bool
	TaskParameters   map[string]any
	Conditions       map[string]any
	FailureThreshold *int

	CronExpression *string
	Timezone       *string

	AllowedMethods  []string
	ValidationRules map[string]any
	WebhookConfig   map[string]any
}

// ListFilter narrows trigger listing (spec §6.1 GET /v1/triggers filters).
type ListFilter struct {
	AgentID       string
	TriggerType   Kind
	ActiveOnly    bool
	CreatorScoped bool
	Limit         int
}

// ExecutionFilter narrows execution listing (spec §6.1 executions endpoint).
type ExecutionFilter struct {
	Status    ExecutionStatus
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// ExecutionPage is the paginated execution listing response.
type ExecutionPage struct {
	Executions []TriggerExecution
	Total      int
	Page       int
	PageSize   int
	HasNext    bool
}

// Metrics is the aggregated execution analytics of spec §4.3.
type Metrics struct {
	TotalExecutions   int
	SuccessCount      int
	FailedCount       int
	TimeoutCount      int
	CancelledCount    int
	AvgExecutionMs    float64
	MinExecutionMs    int64
	MaxExecutionMs    int64
}

// TimelineBucket is a single time-bucketed entry in the execution timeline.
type TimelineBucket struct {
	BucketStart time.Time
	Total       int
	Success     int
	Failed      int
}

// Status is the response shape for GET /v1/triggers/{id}/status.
type Status struct {
	TriggerID                  string
	IsActive                   bool
	LastExecutionAt            *time.Time
	ConsecutiveFailures        int
	ShouldDisableDueToFailures bool
	ScheduleInfo               map[string]any
}
