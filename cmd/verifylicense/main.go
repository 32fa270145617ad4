package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/storage/postgres"
	"github.com/makkenzo/ledgerpro-license-api/internal/util"
	"go.uber.org/zap"
)

// verifylicense prints the state of a license key straight from the
// customer store. It exits non-zero when the key is unknown or not valid.
func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <license-key>", os.Args[0])
	}
	key := os.Args[1]

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	repo := postgres.NewCustomerRepository(pool, logger)

	c, err := repo.FindByLicenseKey(ctx, key)
	if errors.Is(err, ierr.ErrNotFound) {
		fmt.Println("License key not found.")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to look up license key: %v", err)
	}

	now := time.Now().UTC()
	fmt.Printf("Customer:  %s <%s> (%s)\n", c.BusinessName, c.Email, c.ID)
	fmt.Printf("Type:      %s\n", c.License.Type)
	fmt.Printf("Status:    %s\n", c.License.Status)
	if c.License.EndDate != nil {
		fmt.Printf("Expires:   %s\n", c.License.EndDate.Format(time.RFC3339))
	}
	fmt.Printf("Features:  %v\n", util.GetLicenseFeatures(c.License.Type))
	fmt.Printf("Valid now: %t\n", c.IsLicenseValid(now))

	if !c.IsLicenseValid(now) {
		os.Exit(1)
	}
}
