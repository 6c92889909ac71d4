package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/domain/catalog"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// owners
		&views.TraineeView{},
		&views.TraineeEnrollment{},
		&views.ProgramView{},
		&views.TrainerView{},

		// catalog
		&catalog.Concept{},
	); err != nil {
		return err
	}
	for _, kind := range views.Kinds {
		t := views.Tables[kind]
		if err := db.Table(t.Entries).AutoMigrate(&views.SessionEntry{}); err != nil {
			return fmt.Errorf("migrate %s: %w", t.Entries, err)
		}
		if err := db.Table(t.Events).AutoMigrate(&views.EventRow{}); err != nil {
			return fmt.Errorf("migrate %s: %w", t.Events, err)
		}
	}
	return EnsureViewIndexes(db)
}

// EnsureViewIndexes creates the per-table keys of the session tables. They are
// declared here because the row structs are shared across tables.
func EnsureViewIndexes(db *gorm.DB) error {
	for _, kind := range views.Kinds {
		t := views.Tables[kind]
		stmts := []struct{ name, sql string }{
			{
				"idx_" + t.Entries + "_key",
				fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_key ON %s (%s)`, t.Entries, t.Entries, strings.Join(t.EntryKeyColumns(), ", ")),
			},
			{
				"idx_" + t.Entries + "_session",
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session ON %s (program_id, session_id)`, t.Entries, t.Entries),
			},
			{
				"idx_" + t.Events + "_event_id",
				fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_event_id ON %s (event_id)`, t.Events, t.Events),
			},
			{
				"idx_" + t.Events + "_entry_seq",
				fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_entry_seq ON %s (entry_id, seq)`, t.Events, t.Events),
			},
			{
				"idx_" + t.Events + "_trainee",
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_trainee ON %s (trainee_id, session_id)`, t.Events, t.Events),
			},
		}
		for _, s := range stmts {
			if err := db.Exec(s.sql).Error; err != nil {
				return fmt.Errorf("create %s: %w", s.name, err)
			}
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
