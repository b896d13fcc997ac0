package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/audit"
	auditpostgres "github.com/frahmantamala/paygw-chargebee/internal/audit/postgres"
	"github.com/frahmantamala/paygw-chargebee/internal/core/events"
	"github.com/frahmantamala/paygw-chargebee/internal/entitlement"
	entitlementpostgres "github.com/frahmantamala/paygw-chargebee/internal/entitlement/postgres"
	"github.com/frahmantamala/paygw-chargebee/internal/ledger"
	ledgerpostgres "github.com/frahmantamala/paygw-chargebee/internal/ledger/postgres"
	"github.com/frahmantamala/paygw-chargebee/internal/payable"
	payablepostgres "github.com/frahmantamala/paygw-chargebee/internal/payable/postgres"
	"github.com/frahmantamala/paygw-chargebee/internal/payment"
	paymentpostgres "github.com/frahmantamala/paygw-chargebee/internal/payment/postgres"
	"github.com/frahmantamala/paygw-chargebee/internal/paymentgateway"
	"github.com/frahmantamala/paygw-chargebee/internal/reconcile"
	"github.com/frahmantamala/paygw-chargebee/internal/task"
	taskpostgres "github.com/frahmantamala/paygw-chargebee/internal/task/postgres"
	taskredis "github.com/frahmantamala/paygw-chargebee/internal/task/redis"
	"github.com/frahmantamala/paygw-chargebee/pkg/logger"
)

// Dependencies is everything the commands share, built once per process.
type Dependencies struct {
	Config    *internal.Config
	SQL       *sqlx.DB
	DB        *gorm.DB
	Redis     *goredis.Client
	Logger    *slog.Logger
	Bus       *events.EventBus
	Notifier  *events.Notifier
	Audit     *audit.Service
	Purchases *payable.Service
	Payables  payable.RepositoryAPI
	Gateways  paymentgateway.Factory
	Ledger    *ledger.Service
	Payments  payment.RepositoryAPI
	Engine    *reconcile.Engine
	Queue     task.Queue
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	sqlDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := initGorm(config.Database.Driver, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		SQL:    sqlDB,
		DB:     db,
		Logger: log,
	}

	if config.Tasks.Backend == "redis" {
		deps.Redis = goredis.NewClient(&goredis.Options{
			Addr:     config.Tasks.Redis.Addr,
			Password: config.Tasks.Redis.Password,
			DB:       config.Tasks.Redis.DB,
		})
		ctx, cancel := internal.WithTimeout(context.Background(), 2*time.Second)
		err := deps.Redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		deps.Queue = taskredis.NewTaskQueue(deps.Redis)
	} else {
		deps.Queue = taskpostgres.NewTaskQueue(db)
	}

	deps.Bus = events.NewEventBus(log)
	deps.Audit = audit.NewService(auditpostgres.NewAuditRepository(db), log)
	deps.Bus.SubscribeAll(events.LogHandler(log))
	deps.Bus.SubscribeAll(deps.Audit.Handler())
	deps.Notifier = events.NewNotifier(deps.Bus, log)

	deps.Payables = payablepostgres.NewPayableRepository(db)
	deps.Purchases = payable.NewService(deps.Payables, log)
	deps.Gateways = paymentgateway.NewClientFactory(config.Gateway, log)

	deps.Payments = paymentpostgres.NewPaymentRepository(db)
	ledgerRepo := ledgerpostgres.NewLedgerRepository(db)
	deps.Ledger = ledger.NewService(ledgerRepo, ledgerpostgres.NewExporter(sqlDB), log)

	deps.Engine = reconcile.NewEngine(reconcile.Dependencies{
		Purchases:   deps.Purchases,
		Gateways:    deps.Gateways,
		Ledger:      ledgerRepo,
		Deliverer:   entitlement.NewDeliverer(entitlementpostgres.NewEntitlementRepository(db), log),
		Notifier:    deps.Notifier,
		Logger:      log,
		VoidComment: config.Gateway.VoidComment,
	})

	return deps, nil
}

func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.SQL.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func sqlDriverName(driver string) string {
	switch driver {
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return "pgx"
	}
}

// initDB opens the shared connection pool. gorm and sqlx both run on it.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	dbConn, err := sqlx.Connect(sqlDriverName(cfg.Driver), cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

func initGorm(driver string, sqlDB *sqlx.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.New(mysql.Config{Conn: sqlDB.DB})
	case "sqlite":
		dialector = sqlite.New(sqlite.Config{Conn: sqlDB.DB})
	default:
		dialector = postgres.New(postgres.Config{Conn: sqlDB.DB})
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
