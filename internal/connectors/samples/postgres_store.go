package samples

import (
	"database/sql"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"go-sample-plates-report/internal/config"
)

// NewPostgresStore connects through the pgx database/sql driver.
func NewPostgresStore(cfg config.Config) (*Store, error) {
	dsn := cfg.PostgresDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return newStore(db, dialect{name: "postgres", bind: dollarNumbers}, redactDSN(dsn), cfg.DBConnTimeout, cfg.DBQueryTimeout)
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "postgres"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
