package postgresql

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/ticketera/tk-ticket/config"
)

var (
	once sync.Once
	db   *sql.DB
)

// GetDatabase returns the shared PostgreSQL handle.
func GetDatabase() *sql.DB {
	once.Do(func() {
		c := config.Get().PostgreSQL

		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
		)

		var err error
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			panic(err)
		}

		db.SetMaxOpenConns(c.MaxOpenConns)
		db.SetMaxIdleConns(c.MaxIdleConns)
	})

	return db
}
