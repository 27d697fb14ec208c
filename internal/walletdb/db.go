// Package walletdb is the persisted wallet state store: addresses,
// transactions, and their outputs/inputs, backed by a single-writer
// sqlite connection. Schema and the save_transaction_io / reserve /
// release / balance / utxo operations are ported line-for-line from
// the original account database, translated into Go's database/sql
// plus one *sql.Tx per multi-statement procedure.
package walletdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/walletcore/pkg/logging"
)

// Config configures where the wallet database file lives.
type Config struct {
	DataDir  string
	FileName string // defaults to "wallet.db"
}

// DB is the persisted wallet store. All write paths share one
// *sql.DB with SetMaxOpenConns(1) - sqlite only supports one writer -
// and mu additionally serializes Go-level read-modify-write sequences
// that span more than one statement outside of a transaction.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
	log  *logging.Logger
}

// Open creates the data directory if needed, opens the sqlite file in
// WAL mode, and ensures the schema exists.
func Open(cfg Config) (*DB, error) {
	dataDir := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fileName := cfg.FileName
	if fileName == "" {
		fileName = "wallet.db"
	}
	path := filepath.Join(dataDir, fileName)

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	d := &DB{
		conn: conn,
		path: path,
		log:  logging.Component("walletdb"),
	}
	if err := d.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for callers that need direct
// access (migrations tooling, ad-hoc introspection in tests).
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func (d *DB) initSchema() error {
	d.log.Debug("initializing wallet schema")
	_, err := d.conn.Exec(createTablesQuery)
	return err
}

// namedQuery runs sqlStr with the given named-parameter map, the Go
// equivalent of passing a params dict to sqlite3's :name placeholders.
func (d *DB) namedQuery(ctx context.Context, sqlStr string, args map[string]any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, sqlStr, namedArgs(args)...)
}

func (d *DB) namedExec(ctx context.Context, sqlStr string, args map[string]any) (sql.Result, error) {
	return d.conn.ExecContext(ctx, sqlStr, namedArgs(args)...)
}

func (d *DB) namedQueryRow(ctx context.Context, sqlStr string, args map[string]any) *sql.Row {
	return d.conn.QueryRowContext(ctx, sqlStr, namedArgs(args)...)
}

func namedArgs(args map[string]any) []any {
	out := make([]any, 0, len(args))
	for k, v := range args {
		out = append(out, sql.Named(k, v))
	}
	return out
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
