package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"seller-portal/internal/config"
	"seller-portal/internal/database/migrations"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Open connects to the configured database, retrying while it comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	driverName := "postgres"
	if cfg.Driver == DriverSQLite {
		driverName = sqliteshim.ShimName
	} else if cfg.Driver != DriverPostgres && cfg.Driver != "" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, connectAttempts))
		sqldb, err = sql.Open(driverName, cfg.DSN)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				break
			}
			sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect after %d attempts: %w", connectAttempts, err)
	}

	var bunDB *bun.DB
	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection also keeps :memory: shared.
		sqldb.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", cfg.Driver))
	return &DB{Bun: bunDB}, nil
}

// OpenAndMigrate opens the database and brings its schema up to date:
// embedded SQL migrations on Postgres, model-derived tables on SQLite.
func OpenAndMigrate(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	store, err := Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		err = store.CreateSchema(ctx)
	} else if cfg.AutoMigrate {
		runner := migrations.NewRunner(cfg.DSN, log)
		err = runner.MigrateUp()
		if cerr := runner.Close(); cerr != nil {
			log.Warn("MIGRATE", cerr.Error())
		}
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// CreateSchema creates the tables from the bun models. Postgres deployments
// use the SQL migrations instead; this serves SQLite and tests.
func (d *DB) CreateSchema(ctx context.Context) error {
	for _, model := range []interface{}{(*models.Order)(nil), (*models.AdminSetting)(nil)} {
		if _, err := d.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := d.Bun.NewCreateIndex().
		Model((*models.Order)(nil)).
		Index("orders_merchant_id_idx").
		IfNotExists().
		Column("merchant_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.Bun.Close()
}
