package app

import (
	"gorm.io/gorm"

	catalogrepo "github.com/yungbote/trainwatch-backend/internal/data/repos/catalog"
	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type Repos struct {
	Trainees sessions.TraineeRepo
	Programs sessions.ProgramRepo
	Trainers sessions.TrainerRepo

	TraineeLog sessions.SessionLogRepo
	ProgramLog sessions.SessionLogRepo
	TrainerLog sessions.SessionLogRepo

	Concepts catalogrepo.ConceptRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Trainees: sessions.NewTraineeRepo(db, log),
		Programs: sessions.NewProgramRepo(db, log),
		Trainers: sessions.NewTrainerRepo(db, log),

		TraineeLog: sessions.NewSessionLogRepo(db, log, views.KindTrainee),
		ProgramLog: sessions.NewSessionLogRepo(db, log, views.KindProgram),
		TrainerLog: sessions.NewSessionLogRepo(db, log, views.KindTrainer),

		Concepts: catalogrepo.NewConceptRepo(db, log),
	}
}
