package probe

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"casehub/core"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite"
)

// Database kinds
const (
	DatabasePostgres   = "postgres"
	DatabaseSQLite     = "sqlite"
	DatabaseClickHouse = "clickhouse"
	DatabaseMongoDB    = "mongodb"
)

// DatabaseTarget describes how to reach the case database
type DatabaseTarget struct {
	Kind     string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is the database file for sqlite
	Path string
	// URI overrides Host/Port/User/Password for mongodb
	URI string
}

// PostgresDSN builds a pgx connection URL with credentials escaped
func (t DatabaseTarget) PostgresDSN() string {
	sslMode := t.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(t.User, t.Password),
		Host:     net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:     "/" + t.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// SQLiteDSN opens Path read-only so a missing case file is an error
// instead of a freshly created empty database
func (t DatabaseTarget) SQLiteDSN() string {
	path := t.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}
	return u.String()
}

// MongoURI returns URI, or builds one from the host fields
func (t DatabaseTarget) MongoURI() string {
	if t.URI != "" {
		return t.URI
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:   "/" + t.Name,
	}
	if t.User != "" {
		u.User = url.UserPassword(t.User, t.Password)
	}
	return u.String()
}

// Database probes the case database server
type Database struct {
	target DatabaseTarget
	opts   Options
	ping   func(ctx context.Context) error
}

// NewDatabase creates a probe for target. The kind is checked here so a
// misconfiguration is found at startup rather than on the first check.
func NewDatabase(target DatabaseTarget, opts Options) (*Database, error) {
	d := &Database{target: target, opts: opts.withDefaults()}
	switch target.Kind {
	case DatabasePostgres, "":
		d.target.Kind = DatabasePostgres
		d.ping = func(ctx context.Context) error { return pingSQL(ctx, "pgx", d.target.PostgresDSN()) }
	case DatabaseSQLite:
		d.ping = func(ctx context.Context) error { return pingSQL(ctx, "sqlite", d.target.SQLiteDSN()) }
	case DatabaseClickHouse:
		d.ping = d.pingClickHouse
	case DatabaseMongoDB:
		d.ping = d.pingMongo
	default:
		return nil, fmt.Errorf("unsupported database kind %q", target.Kind)
	}
	return d, nil
}

// CheckStatus implements monitor.MonitoredService
func (d *Database) CheckStatus(ctx context.Context) core.ServiceStatusReport {
	return check(ctx, core.ServiceCaseDatabase, d.opts, d.ping)
}

func pingSQL(ctx context.Context, driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}
	return nil
}

func (d *Database) pingClickHouse(ctx context.Context) error {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{net.JoinHostPort(d.target.Host, strconv.Itoa(d.target.Port))},
		Auth: clickhouse.Auth{
			Database: d.target.Name,
			Username: d.target.User,
			Password: d.target.Password,
		},
		DialTimeout:  DefaultTimeout,
		MaxOpenConns: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return nil
}

func (d *Database) pingMongo(ctx context.Context) error {
	clientOptions := options.Client().
		ApplyURI(d.target.MongoURI()).
		SetMaxPoolSize(1).
		SetServerSelectionTimeout(DefaultTimeout)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}
