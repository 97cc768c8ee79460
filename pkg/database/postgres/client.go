package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int
}

// DSN returns the pgx connection string for the config.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.DbName,
	)
}

// NewWithUsernameAndPassword gets a DB connection pool using username/password
// credentials. Queries are traced through New Relic when an application is on
// the calling context.
func NewWithUsernameAndPassword(username, password, hostname, port, dbname string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		username, password, hostname, port, dbname,
	)
	return open(dsn, 0, 0)
}

// NewFromConfig is like NewWithUsernameAndPassword, but also applies the pool
// limits in the config.
func NewFromConfig(c *Config) (*sql.DB, error) {
	return open(c.DSN(), c.MaxOpenConnections, c.MaxIdleConnections)
}

func open(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	// Use the instrumented pgx driver (instead of "postgres")
	db, err := sql.Open("nrpgx", dsn)
	if err != nil {
		return nil, err
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	// Check if the connection was successful
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
