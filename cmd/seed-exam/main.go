package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/database"
	"github.com/stemsi/hoa-backend/internal/logger"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
	"github.com/stemsi/hoa-backend/internal/service"
	"github.com/stemsi/hoa-backend/internal/validator"
)

// examFile is the YAML layout of a seed exam.
type examFile struct {
	Title           string           `yaml:"title"`
	Chapter         string           `yaml:"chapter"`
	Difficulty      model.Difficulty `yaml:"difficulty"`
	Tags            []string         `yaml:"tags"`
	DurationMinutes int              `yaml:"duration_minutes"`
	Questions       []model.Question `yaml:"questions"`
}

func loadExamFile(path string) (*examFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f examFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// requests converts the file into the same payloads the admin API accepts,
// so seeds go through identical validation.
func (f *examFile) requests() (model.CreateExamRequest, model.ReplaceQuestionsRequest) {
	create := model.CreateExamRequest{
		Title:           f.Title,
		Chapter:         f.Chapter,
		Difficulty:      f.Difficulty,
		Tags:            f.Tags,
		DurationMinutes: f.DurationMinutes,
	}
	replace := model.ReplaceQuestionsRequest{Questions: make([]model.QuestionRequest, len(f.Questions))}
	for i, q := range f.Questions {
		replace.Questions[i] = model.QuestionRequest{
			Kind:          q.Kind,
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectSingle: q.CorrectSingle,
			CorrectSet:    q.CorrectSet,
			Explanation:   q.Explanation,
			ImageURL:      q.ImageURL,
		}
	}
	return create, replace
}

func main() {
	file := flag.String("file", "seeds/chemistry_ch3.yaml", "Exam definition (YAML)")
	author := flag.String("author", "", "Email of the admin who owns the exam")
	publish := flag.Bool("publish", false, "Publish the exam after seeding")
	flag.Parse()

	if *author == "" {
		fmt.Println("Usage: seed-exam -author admin@example.com [-file exam.yaml] [-publish]")
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	f, err := loadExamFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load exam file")
	}
	create, replace := f.requests()
	if fields := validator.Struct(create); fields != nil {
		log.Fatal().Interface("fields", fields).Msg("Invalid exam")
	}
	if fields := validator.Struct(replace); fields != nil {
		log.Fatal().Interface("fields", fields).Msg("Invalid questions")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	examService := service.NewExamService(repository.NewExamRepository(pool), rdb, cfg, log)

	admin, err := userRepo.GetByEmail(ctx, *author)
	if err != nil {
		log.Fatal().Err(err).Str("email", *author).Msg("Author not found")
	}
	if admin.Role != model.RoleAdmin {
		log.Fatal().Str("email", *author).Msg("Author must be an admin")
	}

	exam, err := examService.Create(ctx, admin.ID, create)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	if _, err := examService.ReplaceQuestions(ctx, exam.ID, admin.ID, replace); err != nil {
		log.Fatal().Err(err).Msg("Failed to save questions")
	}
	if *publish {
		if err := examService.Publish(ctx, exam.ID, admin.ID); err != nil {
			log.Fatal().Err(err).Msg("Failed to publish exam")
		}
	}

	fmt.Printf("Seeded exam %q (%s) with %d questions\n", exam.Title, exam.ID, len(replace.Questions))
}
