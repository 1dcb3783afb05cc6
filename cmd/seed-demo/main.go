package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/database"
	"github.com/stemsi/exstem-attempts/internal/logger"
	"github.com/stemsi/exstem-attempts/internal/model"
)

type demoQuestion struct {
	prompt  string
	options [4]string
	key     model.OptionKey
}

var demoQuestions = []demoQuestion{
	{"Berapakah hasil dari 7 x 8?", [4]string{"54", "56", "58", "64"}, model.OptionB},
	{"Ibu kota provinsi Bali adalah", [4]string{"Denpasar", "Singaraja", "Gianyar", "Tabanan"}, model.OptionA},
	{"Satuan SI untuk gaya adalah", [4]string{"Joule", "Watt", "Newton", "Pascal"}, model.OptionC},
	{"Protokol yang dipakai untuk mengirim email adalah", [4]string{"HTTP", "FTP", "DNS", "SMTP"}, model.OptionD},
	{"Bilangan prima terkecil adalah", [4]string{"0", "1", "2", "3"}, model.OptionC},
	{"Rumus luas lingkaran adalah", [4]string{"πr²", "2πr", "πd", "r²"}, model.OptionA},
	{"Perangkat yang menghubungkan dua jaringan berbeda disebut", [4]string{"Switch", "Router", "Hub", "Repeater"}, model.OptionB},
	{"Air mendidih pada suhu (tekanan 1 atm)", [4]string{"90°C", "95°C", "100°C", "110°C"}, model.OptionC},
	{"Bahasa pemrograman Go dirilis oleh", [4]string{"Microsoft", "Apple", "Mozilla", "Google"}, model.OptionD},
	{"Hasil dari 2^10 adalah", [4]string{"1024", "512", "2048", "1000"}, model.OptionA},
}

func main() {
	var (
		ownerID  int
		duration int
		passing  float64
		limit    int
	)
	flag.IntVar(&ownerID, "owner", 1, "Learner ID to enroll in the demo module")
	flag.IntVar(&duration, "duration", 30, "Assessment duration in minutes")
	flag.Float64Var(&passing, "passing", 70, "Passing grade percentage")
	flag.IntVar(&limit, "limit", 5, "Questions drawn per attempt")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding Demo Module ===")

	moduleID := uuid.New()
	var assessmentID uuid.UUID

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO assessments (module_id, title, duration_minutes, passing_grade, questions_limit)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			moduleID, "Demo Asesmen", duration, passing, limit,
		).Scan(&assessmentID); err != nil {
			return fmt.Errorf("insert assessment: %w", err)
		}

		rows := make([][]any, 0, len(demoQuestions))
		for _, q := range demoQuestions {
			opts, err := json.Marshal([]model.Option{
				{Key: model.OptionA, Text: q.options[0]},
				{Key: model.OptionB, Text: q.options[1]},
				{Key: model.OptionC, Text: q.options[2]},
				{Key: model.OptionD, Text: q.options[3]},
			})
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			rows = append(rows, []any{assessmentID, q.prompt, string(opts), string(q.key)})
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"questions"},
			[]string{"assessment_id", "prompt", "options", "correct_key"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy questions: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO module_enrollments (owner_id, module_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			ownerID, moduleID,
		); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo module")
	}

	fmt.Printf("Module ID:     %s\n", moduleID)
	fmt.Printf("Assessment ID: %s\n", assessmentID)
	fmt.Printf("Questions:     %d (limit %d per attempt)\n", len(demoQuestions), limit)
	fmt.Printf("Enrolled learner %d\n", ownerID)
	fmt.Println("\nSeed completed!")
}
