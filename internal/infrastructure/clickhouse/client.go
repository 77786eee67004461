package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/config"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
)

const TradesTable = "trades"

type Client struct {
	cfg  *config.Config
	conn clickhouse.Conn // native conn for batch inserts and DDL
	db   *sql.DB         // database/sql for queries
	log  *logger.Logger
	now  func() time.Time
}

var safeIdentRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateIdent(s string) error {
	if s == "" {
		return fmt.Errorf("empty identifier")
	}
	if !safeIdentRe.MatchString(s) {
		return fmt.Errorf("unsafe identifier %q (allowed: [a-zA-Z0-9_])", s)
	}
	return nil
}

func options(cfg *config.Config, database string) *clickhouse.Options {
	opt := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    8,
		MaxIdleConns:    8,
		ConnMaxLifetime: 30 * time.Minute,
	}
	if cfg.ClickHouseSecure {
		opt.TLS = &tls.Config{}
	}
	return opt
}

// NewClient ensures the database exists, applies pending migrations and
// opens both the native and database/sql handles.
func NewClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	if err := validateIdent(cfg.ClickHouseDatabase); err != nil {
		return nil, err
	}
	log = log.Component("clickhouse")

	connDefault, err := clickhouse.Open(options(cfg, "default"))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open(default) failed: %w", err)
	}
	if err := ensureDatabase(ctx, connDefault, cfg.ClickHouseDatabase); err != nil {
		_ = connDefault.Close()
		return nil, err
	}
	_ = connDefault.Close()

	conn, err := clickhouse.Open(options(cfg, cfg.ClickHouseDatabase))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open(%s) failed: %w", cfg.ClickHouseDatabase, err)
	}

	db := clickhouse.OpenDB(options(cfg, cfg.ClickHouseDatabase))
	db.SetMaxOpenConns(6)
	db.SetMaxIdleConns(6)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse db.Ping failed: %w", err)
	}

	c := &Client{
		cfg:  cfg,
		conn: conn,
		db:   db,
		log:  log,
		now:  time.Now,
	}

	migrations, err := LoadMigrations(migrationFiles, "sql")
	if err != nil {
		c.Close()
		return nil, err
	}
	migrateCtx, cancelMigrate := context.WithTimeout(ctx, 30*time.Second)
	defer cancelMigrate()
	if err := c.Migrate(migrateCtx, migrations); err != nil {
		c.Close()
		return nil, err
	}

	log.Info("clickhouse ready",
		logger.String("addr", c.Addr()),
		logger.String("db", cfg.ClickHouseDatabase),
		logger.Bool("secure", cfg.ClickHouseSecure))

	return c, nil
}

func ensureDatabase(ctx context.Context, conn clickhouse.Conn, database string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("clickhouse ping(default) failed: %w", err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)); err != nil {
		return fmt.Errorf("create database failed: %w", err)
	}
	return nil
}

func (c *Client) Name() string { return "clickhouse" }

// Table is the fully qualified trades table
func (c *Client) Table() string {
	return c.cfg.ClickHouseDatabase + "." + TradesTable
}

func (c *Client) Addr() string {
	return fmt.Sprintf("%s:%d", c.cfg.ClickHouseHost, c.cfg.ClickHousePort)
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
