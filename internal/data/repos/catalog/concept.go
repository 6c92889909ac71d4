package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/trainwatch-backend/internal/domain/catalog"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type ConceptRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, concepts []*catalog.Concept) (int, error)
	ListBySessions(ctx context.Context, tx *gorm.DB, sessionIDs []string) ([]*catalog.Concept, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*catalog.Concept, error)
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: baseLog.With("repo", "ConceptRepo")}
}

// Upsert writes concepts keyed by (session_id, concept_id); existing rows take
// the new position, name, summary and range.
func (r *conceptRepo) Upsert(ctx context.Context, tx *gorm.DB, concepts []*catalog.Concept) (int, error) {
	if len(concepts) == 0 {
		return 0, nil
	}
	t := tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	for _, c := range concepts {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
	}
	res := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "concept_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "name", "summary", "start_time", "end_time", "updated_at"}),
		}).
		Create(&concepts)
	if res.Error != nil {
		return 0, res.Error
	}
	r.log.Debug("concepts upserted", "count", len(concepts))
	return len(concepts), nil
}

func (r *conceptRepo) ListBySessions(ctx context.Context, tx *gorm.DB, sessionIDs []string) ([]*catalog.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*catalog.Concept
	if len(sessionIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Order("session_id ASC, position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*catalog.Concept, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*catalog.Concept
	if err := t.WithContext(ctx).
		Order("session_id ASC, position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
