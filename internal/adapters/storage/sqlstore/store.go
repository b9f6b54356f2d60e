package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteTime es de ancho fijo para que ORDER BY sobre TEXT respete el orden real.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// Store envuelve *sql.DB y sabe escribir SQL para cada dialecto.
// Las queries se escriben con "?" y se reescriben a $n en Postgres.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func Open(driver, dsn string) (*Store, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(driver))) {
	case Postgres:
		return OpenPostgres(dsn)
	case SQLite:
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// OpenPostgres abre un pool a Postgres usando pgx (database/sql).
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: Postgres}, nil
}

// OpenSQLite usa modernc (sin cgo). Una sola conexión: sqlite serializa
// escrituras igual y así las PRAGMA valen para todo el proceso.
func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
		}
	}
	return &Store{db: db, dialect: SQLite}, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// q reescribe los placeholders "?" según el dialecto.
func (s *Store) q(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders arma "?, ?, ?" para cláusulas IN.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ts convierte un instante al formato de columna del dialecto.
func (s *Store) ts(t time.Time) any {
	if s.dialect == SQLite {
		return t.UTC().Format(sqliteTime)
	}
	return t.UTC()
}

// scanTime acepta time.Time (pgx) o texto (sqlite).
type scanTime struct {
	t time.Time
}

func (st *scanTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		st.t = time.Time{}
		return nil
	case time.Time:
		st.t = v.UTC()
		return nil
	case string:
		return st.parse(v)
	case []byte:
		return st.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
}

func (st *scanTime) parse(s string) error {
	for _, layout := range []string{sqliteTime, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			st.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: invalid timestamp %q", s)
}

// scanText acepta texto o time.Time (columnas DATE de Postgres).
type scanText struct {
	s string
}

func (st *scanText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		st.s = ""
	case string:
		st.s = v
	case []byte:
		st.s = string(v)
	case time.Time:
		st.s = v.Format("2006-01-02")
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into text", src)
	}
	return nil
}

// isUniqueViolation reconoce violaciones de UNIQUE/PK en ambos drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// likePattern arma un patrón LIKE case-insensitive escapando comodines.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
