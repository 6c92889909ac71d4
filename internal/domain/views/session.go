package views

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionEntry is the per-(owner, session) progress row shared by all three
// views. Each view stores it in its own table; see Tables.
//
// Indexes are created explicitly by the migration because the struct maps to
// several tables.
type SessionEntry struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID        uuid.UUID  `gorm:"type:uuid;not null" json:"owner_id"`
	ProgramID      string     `gorm:"column:program_id;not null" json:"program_id"`
	SessionID      string     `gorm:"column:session_id;not null" json:"session_id"`
	Title          string     `gorm:"column:title" json:"title,omitempty"`
	VideoURL       string     `gorm:"column:video_url" json:"video_url,omitempty"`
	AssignedAt     time.Time  `gorm:"not null" json:"assigned_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	EventCount     int        `gorm:"not null" json:"event_count"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

// EntryState is the monotonic lifecycle Absent -> Created -> HasEvents(n).
type EntryState struct {
	Present bool
	Events  int
}

func (s EntryState) String() string {
	switch {
	case !s.Present:
		return "absent"
	case s.Events == 0:
		return "created"
	default:
		return fmt.Sprintf("has_events(%d)", s.Events)
	}
}

// Advances reports whether next is a legal successor of s.
func (s EntryState) Advances(next EntryState) bool {
	if s.Present && !next.Present {
		return false
	}
	return next.Events >= s.Events
}

func (e *SessionEntry) State() EntryState {
	if e == nil {
		return EntryState{}
	}
	return EntryState{Present: true, Events: e.EventCount}
}

// EventRow is one appended event inside a session entry. Seq is the arrival
// order within the entry and starts at 1.
type EventRow struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	EntryID         uuid.UUID      `gorm:"type:uuid;not null" json:"-"`
	Seq             int            `gorm:"not null" json:"seq"`
	EventID         string         `gorm:"column:event_id;not null" json:"id"`
	TraineeID       string         `gorm:"column:trainee_id;not null" json:"traineeId"`
	PseudonymID     string         `gorm:"column:pseudonym_id" json:"pseudonymId,omitempty"`
	ProgramID       string         `gorm:"column:program_id;not null" json:"programId"`
	SessionID       string         `gorm:"column:session_id;not null" json:"sessionId"`
	ConceptID       string         `gorm:"column:concept_id" json:"conceptId,omitempty"`
	Kind            string         `gorm:"column:kind;not null" json:"kind"`
	Timestamp       float64        `gorm:"not null" json:"timestamp"`
	FromTime        *float64       `json:"fromTime,omitempty"`
	ToTime          *float64       `json:"toTime,omitempty"`
	RewindAmount    *float64       `json:"rewindAmount,omitempty"`
	FromConceptID   string         `json:"fromConceptId,omitempty"`
	FromConceptName string         `json:"fromConceptName,omitempty"`
	ToConceptID     string         `json:"toConceptId,omitempty"`
	ToConceptName   string         `json:"toConceptName,omitempty"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"createdAt"`
	RecordedAt      time.Time      `gorm:"not null" json:"recordedAt"`
}

// TableSet names the entry and event tables of one view.
type TableSet struct {
	Entries string
	Events  string
	// ProgramScoped keys entries by (owner, program, session) instead of
	// (owner, session).
	ProgramScoped bool
}

var Tables = map[Kind]TableSet{
	KindTrainee: {Entries: "trainee_sessions", Events: "trainee_session_events"},
	KindProgram: {Entries: "program_sessions", Events: "program_session_events"},
	KindTrainer: {Entries: "trainer_sessions", Events: "trainer_session_events", ProgramScoped: true},
}

// EntryKeyColumns returns the unique key of the entry table.
func (t TableSet) EntryKeyColumns() []string {
	if t.ProgramScoped {
		return []string{"owner_id", "program_id", "session_id"}
	}
	return []string{"owner_id", "session_id"}
}
