package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"ai-salescoach-be/internal/model"
	"ai-salescoach-be/internal/repository/implementation"
	"ai-salescoach-be/internal/repository/specification"
	"ai-salescoach-be/pkg/database"

	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

type coachSeed struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	AgentID string `json:"agent_id"`
	VoiceID string `json:"voice_id"`
}

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	seedFile := os.Getenv("COACH_SEED_FILE")
	if len(os.Args) > 1 {
		seedFile = os.Args[1]
	}
	if seedFile == "" {
		seedFile = "coaches.json"
	}

	raw, err := os.ReadFile(seedFile)
	if err != nil {
		log.Fatalf("Error: Failed to read %s: %v", seedFile, err)
	}

	var seeds []coachSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatalf("Error: %s is not a JSON list of coaches: %v", seedFile, err)
	}

	db, err := database.NewGormDB(os.Getenv("DB_DRIVER"), dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Seeding %d coaches from %s...", len(seeds), seedFile)

	for _, s := range seeds {
		if s.Slug == "" || s.Name == "" {
			log.Printf("Skipping coach without name or slug: %+v", s)
			continue
		}

		coach := model.Coach{
			Name:    s.Name,
			Slug:    optional(s.Slug),
			AgentId: optional(s.AgentID),
			VoiceId: optional(s.VoiceID),
		}

		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "agent_id", "voice_id", "updated_at"}),
		}).Create(&coach).Error
		if err != nil {
			log.Printf("Error seeding coach '%s': %v", s.Slug, err)
			continue
		}
		log.Printf("Seeded coach: %s (%s -> %s)", s.Name, s.Slug, s.AgentID)
	}

	log.Println("Coach seeding completed!")

	// Coaches without an agent cannot start a voice session yet.
	ready, err := implementation.NewCoachRepository(db).FindAll(
		context.Background(),
		specification.WithAgentBound{},
		specification.OrderBy{Field: "slug"},
	)
	if err != nil {
		log.Fatal("Error: Failed to list coaches:", err)
	}
	log.Printf("%d coaches ready for voice sessions:", len(ready))
	for _, c := range ready {
		log.Printf("  %s -> %s", c.Slug, c.AgentId)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
