package playback

import (
	"time"
)

type Kind string

const (
	KindPlay        Kind = "play"
	KindPause       Kind = "pause"
	KindReplay      Kind = "replay"
	KindSeek        Kind = "seek"
	KindRewind      Kind = "rewind"
	KindDropOff     Kind = "drop-off"
	KindSpeedChange Kind = "speed-change"
	KindConceptJump Kind = "concept-jump"
)

// Kinds lists every accepted event kind in canonical order.
var Kinds = []Kind{
	KindPlay, KindPause, KindReplay, KindSeek,
	KindRewind, KindDropOff, KindSpeedChange, KindConceptJump,
}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Struggle reports whether the kind counts toward struggle tallies.
func (k Kind) Struggle() bool {
	return k == KindReplay || k == KindDropOff
}

// Rewind carries the positional data of a rewind event. Amount is optional on
// input; when present it must equal FromTime - ToTime.
type Rewind struct {
	FromTime        float64  `json:"fromTime" validate:"gte=0"`
	ToTime          float64  `json:"toTime" validate:"gte=0,ltfield=FromTime"`
	Amount          *float64 `json:"rewindAmount,omitempty"`
	FromConceptID   string   `json:"fromConceptId,omitempty" validate:"max=128"`
	FromConceptName string   `json:"fromConceptName,omitempty" validate:"max=256"`
	ToConceptID     string   `json:"toConceptId,omitempty" validate:"max=128"`
	ToConceptName   string   `json:"toConceptName,omitempty" validate:"max=256"`
}

// Event is an immutable playback fact. ID is the deduplication key in every view.
type Event struct {
	ID           string         `json:"id" validate:"required,max=128"`
	TraineeID    string         `json:"traineeId" validate:"required,max=128"`
	PseudonymID  string         `json:"pseudonymId,omitempty" validate:"max=128"`
	ProgramID    string         `json:"programId" validate:"required,max=128"`
	SessionID    string         `json:"sessionId" validate:"required,max=128"`
	SessionTitle string         `json:"sessionTitle,omitempty" validate:"max=256"`
	ConceptID    string         `json:"conceptId,omitempty" validate:"max=128"`
	Kind         Kind           `json:"kind" validate:"required,oneof=play pause replay seek rewind drop-off speed-change concept-jump"`
	Timestamp    float64        `json:"timestamp" validate:"gte=0"`
	CreatedAt    time.Time      `json:"createdAt"`
	Rewind       *Rewind        `json:"rewind,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RewindAmount returns FromTime - ToTime, or 0 for non-rewind events.
func (e *Event) RewindAmount() float64 {
	if e == nil || e.Rewind == nil {
		return 0
	}
	return e.Rewind.FromTime - e.Rewind.ToTime
}

// Normalize fills derived fields. It must run after Validate.
func (e *Event) Normalize() {
	if e == nil || e.Rewind == nil {
		return
	}
	amt := e.Rewind.FromTime - e.Rewind.ToTime
	e.Rewind.Amount = &amt
	if e.ConceptID == "" && e.Rewind.FromConceptID != "" {
		e.ConceptID = e.Rewind.FromConceptID
	}
}
