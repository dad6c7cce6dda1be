// Command seed-model inserts a model descriptor from the command line so a
// fresh deployment has something to serve. The provider API key is read
// from the environment and stored encrypted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"modelbroker/internal/config"
	"modelbroker/internal/models"
	"modelbroker/internal/storage"
)

func main() {
	_ = godotenv.Load()

	nameForUser := flag.String("name", "gpt-4.1-nano", "user-facing model name")
	nameForRequest := flag.String("request-name", "gpt-4.1-nano", "provider-facing model name")
	modalities := flag.String("modalities", "text_to_text", "comma-separated modality list")
	inputPrice := flag.Float64("input-price", 0.10, "input price, USD per million tokens")
	outputPrice := flag.Float64("output-price", 0.40, "output price, USD per million tokens")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("PROVIDER_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ERROR: PROVIDER_API_KEY must be set")
		os.Exit(1)
	}

	modalityList := strings.Split(*modalities, ",")
	for _, m := range modalityList {
		if _, err := models.ParseModality(strings.TrimSpace(m)); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		ModelCacheSize:  10,
		ModelCacheTTL:   time.Minute,
		GrantCacheSize:  10,
		GrantCacheTTL:   time.Minute,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	encryption, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to initialize encryption: %v\n", err)
		os.Exit(1)
	}

	encryptedKey, err := encryption.Encrypt([]byte(apiKey))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to encrypt provider key: %v\n", err)
		os.Exit(1)
	}

	for i := range modalityList {
		modalityList[i] = strings.TrimSpace(modalityList[i])
	}

	model := &models.Model{
		NameForUser:          *nameForUser,
		NameForRequest:       *nameForRequest,
		EncryptedProviderKey: encryptedKey,
		Modalities:           pq.StringArray(modalityList),
		InputPriceUSD:        *inputPrice,
		OutputPriceUSD:       *outputPrice,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := storage.NewModelRepository(db)
	if err := repo.Create(ctx, model); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to create model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created model %s (%s)\n", model.NameForUser, model.ID)
}
