package views

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind identifies one of the three denormalized views.
type Kind string

const (
	KindTrainee Kind = "trainee"
	KindProgram Kind = "program"
	KindTrainer Kind = "trainer"
)

var Kinds = []Kind{KindTrainee, KindProgram, KindTrainer}

func (k Kind) Valid() bool {
	return k == KindTrainee || k == KindProgram || k == KindTrainer
}

// ErrOwnerNotFound is returned when a view's aggregate root does not exist.
var ErrOwnerNotFound = errors.New("view owner not found")

// Cluster labels are a fixed set; assignment is external input.
type Cluster string

const (
	ClusterHighReplay       Cluster = "high-replay"
	ClusterFastWatcher      Cluster = "fast-watcher"
	ClusterNoteTaker        Cluster = "note-taker"
	ClusterLateNightLearner Cluster = "late-night-learner"
	ClusterSteadyPacer      Cluster = "steady-pacer"
)

var Clusters = []Cluster{
	ClusterHighReplay, ClusterFastWatcher, ClusterNoteTaker,
	ClusterLateNightLearner, ClusterSteadyPacer,
}

func (c Cluster) Valid() bool {
	for _, v := range Clusters {
		if c == v {
			return true
		}
	}
	return false
}

type TraineeView struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TraineeID   string    `gorm:"column:trainee_id;not null;uniqueIndex" json:"trainee_id"`
	PseudonymID string    `gorm:"column:pseudonym_id;not null;index" json:"pseudonym_id"`
	Cluster     string    `gorm:"column:cluster" json:"cluster,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (TraineeView) TableName() string { return "trainee_views" }

func (v *TraineeView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type TraineeEnrollment struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TraineeViewID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_trainee_enrollment,priority:1" json:"trainee_view_id"`
	ProgramID     string    `gorm:"column:program_id;not null;uniqueIndex:idx_trainee_enrollment,priority:2;index" json:"program_id"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (TraineeEnrollment) TableName() string { return "trainee_enrollments" }

func (v *TraineeEnrollment) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type ProgramView struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID string    `gorm:"column:program_id;not null;uniqueIndex" json:"program_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	TrainerID string    `gorm:"column:trainer_id;not null;index" json:"trainer_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProgramView) TableName() string { return "program_views" }

func (v *ProgramView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type TrainerView struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TrainerID string    `gorm:"column:trainer_id;not null;uniqueIndex" json:"trainer_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (TrainerView) TableName() string { return "trainer_views" }

func (v *TrainerView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Owner is the resolved aggregate root of a view.
type Owner struct {
	Kind Kind
	ID   uuid.UUID
	Key  string
}
