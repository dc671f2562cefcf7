package samples

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"go-sample-plates-report/internal/config"
)

// NewMySQLStore connects to the lab's MySQL database. The tables must
// already exist; run the import command to create and fill them.
func NewMySQLStore(cfg config.Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	location := fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.Port(config.DefaultMySQLPort), cfg.DBName)
	return newStore(db, dialect{name: "mysql"}, location, cfg.DBConnTimeout, cfg.DBQueryTimeout)
}
