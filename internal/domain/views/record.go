package views

import (
	"encoding/json"
	"time"

	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
)

// EntryDefaults seeds a session entry when it is created.
type EntryDefaults struct {
	Title      string
	VideoURL   string
	AssignedAt time.Time
}

// RecordInput is one event destined for one view.
type RecordInput struct {
	// OwnerKey is the natural key of the view owner: trainee, program or trainer ID.
	OwnerKey string
	// PseudonymID is stored on a newly created trainee owner.
	PseudonymID string
	Event       playback.Event
	Defaults    EntryDefaults
}

type RecordResult struct {
	Owner Owner
	// PseudonymID is the pseudonym stored on the trainee owner, which wins
	// over the one supplied in the input.
	PseudonymID string
	EntryID     string
	Appended    bool
	Before      EntryState
	After       EntryState
}

// EnsureInput creates an owner's session entry without appending an event.
type EnsureInput struct {
	OwnerKey    string
	PseudonymID string
	ProgramID   string
	SessionID   string
	Defaults    EntryDefaults
}

// RowFromEvent copies an event into its stored row form.
func RowFromEvent(ev playback.Event, pseudonym string) EventRow {
	row := EventRow{
		EventID:     ev.ID,
		TraineeID:   ev.TraineeID,
		PseudonymID: pseudonym,
		ProgramID:   ev.ProgramID,
		SessionID:   ev.SessionID,
		ConceptID:   ev.ConceptID,
		Kind:        string(ev.Kind),
		Timestamp:   ev.Timestamp,
		CreatedAt:   ev.CreatedAt,
	}
	if len(ev.Metadata) > 0 {
		if b, err := json.Marshal(ev.Metadata); err == nil {
			row.Metadata = b
		}
	}
	if r := ev.Rewind; r != nil {
		from, to := r.FromTime, r.ToTime
		amt := from - to
		row.FromTime = &from
		row.ToTime = &to
		row.RewindAmount = &amt
		row.FromConceptID = r.FromConceptID
		row.FromConceptName = r.FromConceptName
		row.ToConceptID = r.ToConceptID
		row.ToConceptName = r.ToConceptName
	}
	return row
}

// ToEvent rebuilds the playback event held by a row.
func (r EventRow) ToEvent() playback.Event {
	ev := playback.Event{
		ID:          r.EventID,
		TraineeID:   r.TraineeID,
		PseudonymID: r.PseudonymID,
		ProgramID:   r.ProgramID,
		SessionID:   r.SessionID,
		ConceptID:   r.ConceptID,
		Kind:        playback.Kind(r.Kind),
		Timestamp:   r.Timestamp,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		var md map[string]any
		if err := json.Unmarshal(r.Metadata, &md); err == nil {
			ev.Metadata = md
		}
	}
	if r.FromTime != nil && r.ToTime != nil {
		ev.Rewind = &playback.Rewind{
			FromTime:        *r.FromTime,
			ToTime:          *r.ToTime,
			FromConceptID:   r.FromConceptID,
			FromConceptName: r.FromConceptName,
			ToConceptID:     r.ToConceptID,
			ToConceptName:   r.ToConceptName,
		}
		if r.RewindAmount != nil {
			amt := *r.RewindAmount
			ev.Rewind.Amount = &amt
		}
	}
	return ev
}
