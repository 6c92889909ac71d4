package ingestion

import "github.com/yungbote/trainwatch-backend/internal/domain/views"

type Status string

const (
	StatusRecorded Status = "recorded"
	// StatusDegraded means the Trainee-View holds the event but at least one
	// secondary view does not yet.
	StatusDegraded Status = "degraded"
)

type Outcome string

const (
	OutcomeAppended  Outcome = "appended"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

const (
	ReasonProgramNotProvisioned = "program_not_provisioned"
	ReasonProgramLookupFailed   = "program_lookup_failed"
	ReasonTrainerNotAssigned    = "trainer_not_assigned"
	ReasonWriteFailed           = "write_failed"
	ReasonBreakerOpen           = "breaker_open"
)

type ViewReport struct {
	View    views.Kind `json:"view"`
	Outcome Outcome    `json:"outcome"`
	Reason  string     `json:"reason,omitempty"`
	Error   string     `json:"error,omitempty"`
	// RepairScheduled is set when a failed write was handed to the repair queue.
	RepairScheduled bool `json:"repairScheduled,omitempty"`
}

type Result struct {
	EventID     string       `json:"eventId"`
	PseudonymID string       `json:"pseudonymId,omitempty"`
	Status      Status       `json:"status"`
	Views       []ViewReport `json:"views"`
}

func (r Result) Degraded() bool { return r.Status == StatusDegraded }

// View returns the report for kind, if present.
func (r Result) View(kind views.Kind) (ViewReport, bool) {
	for _, v := range r.Views {
		if v.View == kind {
			return v, true
		}
	}
	return ViewReport{}, false
}

func outcomeOf(res views.RecordResult) Outcome {
	if res.Appended {
		return OutcomeAppended
	}
	return OutcomeDuplicate
}
