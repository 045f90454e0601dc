package series

import "time"

// CreateSeriesRequest registers a recurring booking pattern.
type CreateSeriesRequest struct {
	RRule           string     `json:"rrule" validate:"required,rrule"`
	StartTime       string     `json:"start_time" validate:"required,wallclock"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,gte=1"`
	StartDate       time.Time  `json:"start_date" validate:"required"`
	EndDate         *time.Time `json:"end_date"`
	Notes           string     `json:"notes" validate:"max=500"`
}

// SkipInstanceRequest cancels one occurrence by its calendar date.
type SkipInstanceRequest struct {
	Date   time.Time `json:"date" validate:"required"`
	Reason string    `json:"reason" validate:"max=255"`
}

// CancelSeriesRequest stops a series with an optional reason.
type CancelSeriesRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// ExtendSeriesRequest moves the series end date. A null end date makes the
// series open-ended.
type ExtendSeriesRequest struct {
	EndDate *time.Time `json:"end_date"`
}

// CreateSeriesResponse pairs the new series with its first materialization.
type CreateSeriesResponse struct {
	Series *Series            `json:"series"`
	Result *MaterializeResult `json:"materialization,omitempty"`
}

// CancelSeriesResponse reports the cancellation fallout.
type CancelSeriesResponse struct {
	Series             *Series `json:"series"`
	InstancesCancelled int     `json:"instances_cancelled"`
}
