package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// SessionLogRepo reads and writes one view's session entries and events.
// Compare-and-set of event_count belongs to the caller's write boundary.
type SessionLogRepo interface {
	Kind() views.Kind
	Tables() views.TableSet

	// UpsertEntry inserts the entry if absent, then re-reads it with a row
	// lock. created reports whether this call inserted it.
	UpsertEntry(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, programID, sessionID string, d views.EntryDefaults, now time.Time) (entry *views.SessionEntry, created bool, err error)
	// InsertEvent appends row unless its event_id is already stored.
	InsertEvent(ctx context.Context, tx *gorm.DB, row *views.EventRow) (bool, error)

	GetEntry(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, programID, sessionID string) (*views.SessionEntry, error)
	ListEntries(ctx context.Context, tx *gorm.DB, ownerIDs []uuid.UUID) ([]*views.SessionEntry, error)
	ListEvents(ctx context.Context, tx *gorm.DB, entryIDs []uuid.UUID) ([]views.EventRow, error)
	ListEventsByProgram(ctx context.Context, tx *gorm.DB, programID string) ([]views.EventRow, error)
	GetEvent(ctx context.Context, tx *gorm.DB, eventID string) (*views.EventRow, error)
	// EventIDs lists event IDs of one entry in arrival order. An empty
	// traineeID matches every trainee.
	EventIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, programID, sessionID, traineeID string) ([]string, error)
}

type sessionLogRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	kind   views.Kind
	tables views.TableSet
}

func NewSessionLogRepo(db *gorm.DB, baseLog *logger.Logger, kind views.Kind) SessionLogRepo {
	return &sessionLogRepo{
		db:     db,
		log:    baseLog.With("repo", "SessionLogRepo", "view", string(kind)),
		kind:   kind,
		tables: views.Tables[kind],
	}
}

func (r *sessionLogRepo) Kind() views.Kind        { return r.kind }
func (r *sessionLogRepo) Tables() views.TableSet { return r.tables }

func (r *sessionLogRepo) entryScope(q *gorm.DB, ownerID uuid.UUID, programID, sessionID string) *gorm.DB {
	q = q.Where("owner_id = ? AND session_id = ?", ownerID, sessionID)
	if r.tables.ProgramScoped {
		q = q.Where("program_id = ?", programID)
	}
	return q
}

func (r *sessionLogRepo) UpsertEntry(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, programID, sessionID string, d views.EntryDefaults, now time.Time) (*views.SessionEntry, bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	assigned := d.AssignedAt
	if assigned.IsZero() {
		assigned = now
	}
	cols := make([]clause.Column, 0, 3)
	for _, c := range r.tables.EntryKeyColumns() {
		cols = append(cols, clause.Column{Name: c})
	}
	fresh := &views.SessionEntry{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		ProgramID:  programID,
		SessionID:  sessionID,
		Title:      d.Title,
		VideoURL:   d.VideoURL,
		AssignedAt: assigned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res := t.WithContext(ctx).
		Table(r.tables.Entries).
		Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).
		Create(fresh)
	if res.Error != nil {
		return nil, false, res.Error
	}

	var out views.SessionEntry
	q := t.WithContext(ctx).Table(r.tables.Entries).Clauses(clause.Locking{Strength: "UPDATE"})
	if err := r.entryScope(q, ownerID, programID, sessionID).Take(&out).Error; err != nil {
		return nil, false, err
	}

	// Descriptive fields are filled once; an entry created by an event may
	// learn its title later from program management.
	fill := map[string]any{}
	if out.Title == "" && d.Title != "" {
		fill["title"] = d.Title
		out.Title = d.Title
	}
	if out.VideoURL == "" && d.VideoURL != "" {
		fill["video_url"] = d.VideoURL
		out.VideoURL = d.VideoURL
	}
	if len(fill) > 0 {
		if err := t.WithContext(ctx).Table(r.tables.Entries).Where("id = ?", out.ID).Updates(fill).Error; err != nil {
			return nil, false, err
		}
	}
	return &out, res.RowsAffected > 0, nil
}

func (r *sessionLogRepo) InsertEvent(ctx context.Context, tx *gorm.DB, row *views.EventRow) (bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	res := t.WithContext(ctx).
		Table(r.tables.Events).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionLogRepo) GetEntry(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, programID, sessionID string) (*views.SessionEntry, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out views.SessionEntry
	err := r.entryScope(t.WithContext(ctx).Table(r.tables.Entries), ownerID, programID, sessionID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionLogRepo) ListEntries(ctx context.Context, tx *gorm.DB, ownerIDs []uuid.UUID) ([]*views.SessionEntry, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*views.SessionEntry
	if len(ownerIDs) == 0 {
		return out, nil
	}
	err := t.WithContext(ctx).
		Table(r.tables.Entries).
		Where("owner_id IN ?", ownerIDs).
		Order("assigned_at ASC, created_at ASC, session_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionLogRepo) ListEvents(ctx context.Context, tx *gorm.DB, entryIDs []uuid.UUID) ([]views.EventRow, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []views.EventRow
	if len(entryIDs) == 0 {
		return out, nil
	}
	err := t.WithContext(ctx).
		Table(r.tables.Events).
		Where("entry_id IN ?", entryIDs).
		Order("entry_id ASC, seq ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionLogRepo) ListEventsByProgram(ctx context.Context, tx *gorm.DB, programID string) ([]views.EventRow, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []views.EventRow
	err := t.WithContext(ctx).
		Table(r.tables.Events).
		Where("program_id = ?", programID).
		Order("recorded_at ASC, seq ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionLogRepo) GetEvent(ctx context.Context, tx *gorm.DB, eventID string) (*views.EventRow, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out views.EventRow
	err := t.WithContext(ctx).Table(r.tables.Events).Where("event_id = ?", eventID).Take(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionLogRepo) EventIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, programID, sessionID, traineeID string) ([]string, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	ids := []string{}
	q := t.WithContext(ctx).
		Table(r.tables.Events+" AS e").
		Joins("JOIN "+r.tables.Entries+" AS s ON s.id = e.entry_id").
		Where("s.owner_id = ? AND s.session_id = ?", ownerID, sessionID)
	if traineeID != "" {
		q = q.Where("e.trainee_id = ?", traineeID)
	}
	if r.tables.ProgramScoped || programID != "" {
		q = q.Where("s.program_id = ?", programID)
	}
	if err := q.Order("e.seq ASC").Pluck("e.event_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
