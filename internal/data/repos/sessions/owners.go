package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type TraineeRepo interface {
	// EnsureOwner creates the trainee on first contact. An existing row is
	// returned unchanged, including its pseudonym.
	EnsureOwner(ctx context.Context, tx *gorm.DB, traineeID, pseudonymID string, now time.Time) (*views.TraineeView, error)
	Enroll(ctx context.Context, tx *gorm.DB, traineeViewID uuid.UUID, programID string, now time.Time) error
	GetByTraineeID(ctx context.Context, tx *gorm.DB, traineeID string) (*views.TraineeView, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*views.TraineeView, error)
	ListProgramIDs(ctx context.Context, tx *gorm.DB, traineeViewID uuid.UUID) ([]string, error)
	ListByProgram(ctx context.Context, tx *gorm.DB, programID string) ([]*views.TraineeView, error)
	SetCluster(ctx context.Context, tx *gorm.DB, traineeID string, cluster views.Cluster, now time.Time) error
}

type traineeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraineeRepo(db *gorm.DB, baseLog *logger.Logger) TraineeRepo {
	return &traineeRepo{db: db, log: baseLog.With("repo", "TraineeRepo")}
}

func (r *traineeRepo) EnsureOwner(ctx context.Context, tx *gorm.DB, traineeID, pseudonymID string, now time.Time) (*views.TraineeView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	traineeID = strings.TrimSpace(traineeID)
	if traineeID == "" {
		return nil, fmt.Errorf("trainee id required")
	}
	row := &views.TraineeView{
		ID:          uuid.New(),
		TraineeID:   traineeID,
		PseudonymID: pseudonymID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res := t.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "trainee_id"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Debug("trainee view created", "trainee_id", traineeID, "pseudonym_id", pseudonymID)
	}
	var out views.TraineeView
	if err := t.WithContext(ctx).Where("trainee_id = ?", traineeID).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *traineeRepo) Enroll(ctx context.Context, tx *gorm.DB, traineeViewID uuid.UUID, programID string, now time.Time) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if traineeViewID == uuid.Nil || strings.TrimSpace(programID) == "" {
		return nil
	}
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trainee_view_id"}, {Name: "program_id"}},
			DoNothing: true,
		}).
		Create(&views.TraineeEnrollment{
			ID:            uuid.New(),
			TraineeViewID: traineeViewID,
			ProgramID:     programID,
			CreatedAt:     now,
		}).Error
}

func (r *traineeRepo) GetByTraineeID(ctx context.Context, tx *gorm.DB, traineeID string) (*views.TraineeView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out views.TraineeView
	err := t.WithContext(ctx).Where("trainee_id = ?", traineeID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trainee %s: %w", traineeID, views.ErrOwnerNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *traineeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*views.TraineeView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*views.TraineeView
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *traineeRepo) ListProgramIDs(ctx context.Context, tx *gorm.DB, traineeViewID uuid.UUID) ([]string, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []string
	err := t.WithContext(ctx).
		Model(&views.TraineeEnrollment{}).
		Where("trainee_view_id = ?", traineeViewID).
		Order("created_at ASC, program_id ASC").
		Pluck("program_id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *traineeRepo) ListByProgram(ctx context.Context, tx *gorm.DB, programID string) ([]*views.TraineeView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*views.TraineeView
	err := t.WithContext(ctx).
		Table("trainee_views AS tv").
		Select("tv.*").
		Joins("JOIN trainee_enrollments AS en ON en.trainee_view_id = tv.id").
		Where("en.program_id = ?", programID).
		Order("tv.created_at ASC, tv.trainee_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *traineeRepo) SetCluster(ctx context.Context, tx *gorm.DB, traineeID string, cluster views.Cluster, now time.Time) error {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Model(&views.TraineeView{}).
		Where("trainee_id = ?", traineeID).
		Updates(map[string]any{"cluster": string(cluster), "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("trainee %s: %w", traineeID, views.ErrOwnerNotFound)
	}
	return nil
}

type ProgramRepo interface {
	Create(ctx context.Context, tx *gorm.DB, p *views.ProgramView) error
	GetByProgramID(ctx context.Context, tx *gorm.DB, programID string) (*views.ProgramView, error)
	GetByProgramIDs(ctx context.Context, tx *gorm.DB, programIDs []string) ([]*views.ProgramView, error)
	ListByTrainer(ctx context.Context, tx *gorm.DB, trainerID string) ([]*views.ProgramView, error)
}

type programRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgramRepo(db *gorm.DB, baseLog *logger.Logger) ProgramRepo {
	return &programRepo{db: db, log: baseLog.With("repo", "ProgramRepo")}
}

// Create inserts a new program. An existing program ID surfaces as a unique
// violation for the caller to map.
func (r *programRepo) Create(ctx context.Context, tx *gorm.DB, p *views.ProgramView) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if p == nil {
		return nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return t.WithContext(ctx).Create(p).Error
}

func (r *programRepo) GetByProgramID(ctx context.Context, tx *gorm.DB, programID string) (*views.ProgramView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out views.ProgramView
	err := t.WithContext(ctx).Where("program_id = ?", programID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("program %s: %w", programID, views.ErrOwnerNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *programRepo) GetByProgramIDs(ctx context.Context, tx *gorm.DB, programIDs []string) ([]*views.ProgramView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*views.ProgramView
	if len(programIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).Where("program_id IN ?", programIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programRepo) ListByTrainer(ctx context.Context, tx *gorm.DB, trainerID string) ([]*views.ProgramView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*views.ProgramView
	err := t.WithContext(ctx).
		Where("trainer_id = ?", trainerID).
		Order("created_at ASC, program_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type TrainerRepo interface {
	EnsureOwner(ctx context.Context, tx *gorm.DB, trainerID string, now time.Time) (*views.TrainerView, error)
	GetByTrainerID(ctx context.Context, tx *gorm.DB, trainerID string) (*views.TrainerView, error)
}

type trainerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainerRepo(db *gorm.DB, baseLog *logger.Logger) TrainerRepo {
	return &trainerRepo{db: db, log: baseLog.With("repo", "TrainerRepo")}
}

func (r *trainerRepo) EnsureOwner(ctx context.Context, tx *gorm.DB, trainerID string, now time.Time) (*views.TrainerView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	trainerID = strings.TrimSpace(trainerID)
	if trainerID == "" {
		return nil, fmt.Errorf("trainer id required")
	}
	res := t.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "trainer_id"}}, DoNothing: true}).
		Create(&views.TrainerView{ID: uuid.New(), TrainerID: trainerID, CreatedAt: now, UpdatedAt: now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Debug("trainer view created", "trainer_id", trainerID)
	}
	var out views.TrainerView
	if err := t.WithContext(ctx).Where("trainer_id = ?", trainerID).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *trainerRepo) GetByTrainerID(ctx context.Context, tx *gorm.DB, trainerID string) (*views.TrainerView, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out views.TrainerView
	err := t.WithContext(ctx).Where("trainer_id = ?", trainerID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trainer %s: %w", trainerID, views.ErrOwnerNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
