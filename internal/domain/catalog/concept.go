package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Concept is a labeled time range within a session's timeline. Position is
// the definition order within the session and drives tie-breaking in reports.
type Concept struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ConceptID string    `gorm:"column:concept_id;not null;uniqueIndex:idx_concept_session_concept,priority:2" json:"id"`
	SessionID string    `gorm:"column:session_id;not null;uniqueIndex:idx_concept_session_concept,priority:1" json:"trainingSessionId"`
	Position  int       `gorm:"not null" json:"position"`
	Name      string    `gorm:"not null" json:"name"`
	Summary   string    `json:"summary,omitempty"`
	StartTime float64   `gorm:"not null" json:"startTime"`
	EndTime   float64   `gorm:"not null" json:"endTime"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`
}

func (Concept) TableName() string { return "concepts" }

func (c *Concept) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Duration is EndTime - StartTime, never negative.
func (c Concept) Duration() float64 {
	if c.EndTime <= c.StartTime {
		return 0
	}
	return c.EndTime - c.StartTime
}
