// Package dsn builds data source names from the DB configuration.
package dsn

import (
	"fmt"
	"net/url"

	"github.com/pmhub/pmhub/internal/config"
)

// MySQL builds a go-sql-driver/mysql DSN.
func MySQL(db *config.DB) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Extras,
	)
}

// Postgres builds a postgres connection URI. Extras is appended as the query string.
func Postgres(db *config.DB) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Name,
		RawQuery: db.Extras,
	}

	return u.String()
}

// SQLite returns the sqlite file, ":memory:" when none is configured.
func SQLite(db *config.DB) string {
	if db.File == "" {
		return ":memory:"
	}

	return db.File
}

// Create builds the DSN for the configured engine.
func Create(db *config.DB) string {
	switch db.GormEngine {
	case config.EngineMySQL:
		return MySQL(db)
	case config.EnginePostgres:
		return Postgres(db)
	default:
		return SQLite(db)
	}
}
