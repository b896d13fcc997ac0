package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/audit"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/entitlement"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/ledger"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payable"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/task"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations directory",
		Long: `Apply the SQL migrations under db/migrations on PostgreSQL.
MySQL and SQLite databases are migrated from the gorm models instead.`,
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "db/migrations", "sql migrations directory")
	rootCmd.AddCommand(migrateCmd)
}

// models lists every table the service owns, in dependency order.
func models() []interface{} {
	return []interface{}{
		&payable.Account{},
		&payable.Payable{},
		&payment.Payment{},
		&ledger.Transaction{},
		&entitlement.Entitlement{},
		&audit.Event{},
		&task.ReconciliationTask{},
	}
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Database.Driver != "postgres" {
		return autoMigrate(cfg.Database.Driver)
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		log.Fatalf("goose: failed to open DB: %v\n", err)
	}
	defer db.Close()
	goose.SetTableName("schema_migrations")

	command := "up"
	if migrateRollback {
		command = "down"
	}
	if err := goose.RunContext(ctx, command, db, migrateDir); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}

	return nil
}

func autoMigrate(driver string) error {
	if migrateRollback {
		return fmt.Errorf("rollback is only supported on postgres, not %s", driver)
	}

	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	if err := deps.DB.AutoMigrate(models()...); err != nil {
		return fmt.Errorf("auto migrate %s: %w", driver, err)
	}
	deps.Logger.Info("database schema migrated", "driver", driver)
	return nil
}
