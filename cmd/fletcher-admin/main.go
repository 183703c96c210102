// Package main is the entry point for the Fletcher Signer admin CLI.
// This tool provides administrative commands for API keys and the
// issuance audit log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/fletcher-signer/internal/config"
	"github.com/prn-tf/fletcher-signer/internal/repository"
	"github.com/prn-tf/fletcher-signer/internal/repository/postgres"
	"github.com/prn-tf/fletcher-signer/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Fletcher Signer Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "hash-apikey":
		if err := runHashAPIKey(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "issuances":
		if err := runIssuances(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "prune":
		if err := runPrune(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "migrate":
		if err := runMigrate(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runHashAPIKey(args []string) error {
	fs := flag.NewFlagSet("hash-apikey", flag.ExitOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: fletcher-admin hash-apikey [--cost N] <key>")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fs.Arg(0)), *cost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

func runIssuances(args []string) error {
	fs := flag.NewFlagSet("issuances", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	limit := fs.Int("limit", 20, "number of records to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	issuances, closeDB, err := openRepository(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := issuances.ListRecent(ctx, *limit)
	if err != nil {
		return fmt.Errorf("failed to list issuances: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No issuances recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-40s  %-8s  %s\n", "ID", "ISSUED", "BLOB", "BACKEND", "EXPIRES")
	for _, rec := range records {
		fmt.Printf("%-36s  %-20s  %-40s  %-8s  %s\n",
			rec.ID,
			rec.IssuedAt.Format(time.RFC3339),
			rec.BlobName,
			rec.Backend,
			rec.ExpiresAt.Format(time.RFC3339),
		)
	}
	return nil
}

func runPrune(args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "delete records issued more than this long ago")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	issuances, closeDB, err := openRepository(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	deleted, err := issuances.DeleteOlderThan(ctx, time.Now().Add(-*olderThan))
	if err != nil {
		return fmt.Errorf("failed to prune issuances: %w", err)
	}

	fmt.Printf("Deleted %d issuance record(s).\n", deleted)
	return nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	_, closeDB, err := openRepository(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	fmt.Println("Migrations applied.")
	return nil
}

// openRepository opens the audit database per config and runs migrations.
func openRepository(ctx context.Context, configPath string) (repository.IssuanceRepository, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewIssuanceRepository(db), func() { _ = db.Close() }, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewIssuanceRepository(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func printUsage() {
	fmt.Println(`Fletcher Signer Admin CLI

Usage:
  fletcher-admin <command> [arguments]

Commands:
  hash-apikey   Hash an API key for the auth.api_key_hashes config list
  issuances     Show recently issued signed URLs
  prune         Delete old issuance audit records
  migrate       Apply database migrations
  version       Print version information
  help          Show this help message

Examples:
  fletcher-admin hash-apikey my-secret-key
  fletcher-admin issuances --config config.yaml --limit 50
  fletcher-admin prune --older-than 720h
  fletcher-admin migrate --config config.yaml

Use "fletcher-admin <command> --help" for more information about a command.`)
}
