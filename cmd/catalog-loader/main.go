// cmd/catalog-loader - Deployment-time catalog seeding
//
// Reads achievement definitions from a JSON file and upserts them by name.
// Safe to run repeatedly.
//
//	go run ./cmd/catalog-loader -file catalog.json
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"lifelog/database"
	"lifelog/services"

	"github.com/joho/godotenv"
)

func main() {
	file := flag.String("file", "", "path to a JSON catalog file (defaults to the built-in catalog)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	database.InitDB()
	defer database.CloseDB()

	inputs := services.DefaultCatalog()
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("Failed to read catalog file: %v", err)
		}
		inputs = nil
		if err := json.Unmarshal(data, &inputs); err != nil {
			log.Fatalf("Failed to parse catalog file: %v", err)
		}
	}

	svc := services.NewCatalogService(database.GetDB())
	if err := svc.SeedDefinitions(inputs); err != nil {
		log.Fatalf("❌ Catalog seeding failed: %v", err)
	}

	log.Printf("✅ Catalog seeding completed (%d definitions)", len(inputs))
}
