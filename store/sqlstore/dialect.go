package sqlstore

import (
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
)

// dialect captures what differs between the supported databases. Queries
// are written once with "?" placeholders and rebound per dialect.
type dialect struct {
	name       string
	driverName string
	forUpdate  string // row-lock suffix for SELECT
	numbered   bool   // $1, $2 ... placeholders
}

var (
	dialectSQLite = dialect{
		name:       "sqlite",
		driverName: "sqlite3",
		// SQLite has no row locks; BEGIN IMMEDIATE on a single connection
		// already makes each transaction the only writer.
		forUpdate: "",
	}
	dialectPostgres = dialect{
		name:       "postgres",
		driverName: "pgx",
		forUpdate:  " FOR UPDATE",
		numbered:   true,
	}
)

func dialectFor(driver string) (dialect, bool) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3", "":
		return dialectSQLite, true
	case "postgres", "postgresql", "pgx":
		return dialectPostgres, true
	}
	return dialect{}, false
}

// rebind rewrites "?" placeholders for dialects that number them.
// Queries in this package never contain a literal '?'.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
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

// sqliteDSN appends the connection options the store relies on.
func sqliteDSN(path string) string {
	if path == "" {
		path = "cantina.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}
