package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/models"
	"github.com/noah-isme/studycenter-api/internal/repository"
	"github.com/noah-isme/studycenter-api/internal/seed"
	"github.com/noah-isme/studycenter-api/pkg/config"
	"github.com/noah-isme/studycenter-api/pkg/database"
	"github.com/noah-isme/studycenter-api/pkg/logger"
)

type repositoryStore struct {
	subjects    *repository.SubjectRepository
	rooms       *repository.RoomRepository
	instructors *repository.InstructorRepository
}

func (s repositoryStore) UpsertDepartment(ctx context.Context, d *models.Department) error {
	return s.subjects.UpsertDepartment(ctx, d)
}

func (s repositoryStore) UpsertSubject(ctx context.Context, sub *models.Subject) error {
	return s.subjects.Upsert(ctx, sub)
}

func (s repositoryStore) UpsertRoom(ctx context.Context, r *models.Room) error {
	return s.rooms.Upsert(ctx, r)
}

func (s repositoryStore) UpsertInstructor(ctx context.Context, i *models.Instructor) error {
	return s.instructors.Upsert(ctx, i)
}

func main() {
	path := flag.String("file", "scripts/seed/reference.yaml", "seed fixture to load")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	fixture, err := seed.Load(*path)
	if err != nil {
		logr.Fatal("load seed", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db, logr); err != nil {
		logr.Fatal("migrate database", zap.Error(err))
	}

	store := repositoryStore{
		subjects:    repository.NewSubjectRepository(db),
		rooms:       repository.NewRoomRepository(db),
		instructors: repository.NewInstructorRepository(db),
	}
	if err := seed.Apply(ctx, store, fixture, logr); err != nil {
		logr.Fatal("apply seed", zap.Error(err))
	}
}
