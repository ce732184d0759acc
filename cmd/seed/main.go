// Command seed loads demo doctors, patients and a staff account so the
// booking API can be exercised locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/infrastructure/clients/postgres"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/config"
)

func strPtr(s string) *string { return &s }

var demoUsers = []entities.User{
	{Name: "Dr. Amina Hassan", Email: "amina.hassan@clinic.test", Role: entities.RoleDoctor, Specialty: strPtr("Cardiology")},
	{Name: "Dr. Omar Farouk", Email: "omar.farouk@clinic.test", Role: entities.RoleDoctor, Specialty: strPtr("Dermatology")},
	{Name: "Dr. Lina Saleh", Email: "lina.saleh@clinic.test", Role: entities.RoleDoctor, Specialty: strPtr("Pediatrics")},
	{Name: "Front Desk", Email: "desk@clinic.test", Role: entities.RoleStaff},
	{Name: "Sara Ali", Email: "sara.ali@example.test", Role: entities.RolePatient},
	{Name: "Youssef Nabil", Email: "youssef.nabil@example.test", Role: entities.RolePatient},
}

func main() {
	reset := flag.Bool("reset", os.Getenv("RESET_DB") == "true", "Truncate users and appointments before seeding")
	flag.Parse()

	cfg := config.FromEnv()
	observability.InitLogger("clinic-seed", cfg.Server.Env)
	logger := observability.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pgClient.Close()

	if _, err := pgClient.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	if *reset {
		logger.Warn().Msg("truncating users and appointments before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE appointments, rays, users CASCADE`); err != nil {
			logger.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	db := goqu.New("postgres", pgClient.DB())
	for _, u := range demoUsers {
		record := goqu.Record{"name": u.Name, "email": u.Email, "role": string(u.Role)}
		if u.Specialty != nil {
			record["specialty"] = *u.Specialty
		}

		// Re-running the seed keeps existing ids stable.
		query, _, err := db.Insert("users").
			Rows(record).
			OnConflict(goqu.DoUpdate("email", goqu.Record{"name": goqu.I("excluded.name")})).
			Returning("id").
			ToSQL()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build insert")
		}

		var id string
		if err := pgClient.DB().QueryRowContext(ctx, query).Scan(&id); err != nil {
			logger.Fatal().Err(err).Str("email", u.Email).Msg("failed to seed user")
		}
		fmt.Printf("%-8s %s  %s\n", u.Role, id, u.Email)
	}

	logger.Info().Int("users", len(demoUsers)).Msg("seed complete")
}
