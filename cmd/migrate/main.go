// Command migrate applies the guard_tasks schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		down  = flag.Bool("down", false, "roll back instead of applying")
		steps = flag.Int("steps", 0, "limit to N steps (0 = all)")
		dbURL = flag.String("db-url", "", "database URL (defaults to DATABASE_URL)")
		dir   = flag.String("path", "migrations", "migrations directory")
	)
	flag.Parse()

	if err := run(*dir, resolveDSN(*dbURL), *down, *steps); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(dir, dsn string, down bool, steps int) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	switch {
	case steps > 0 && down:
		err = m.Steps(-steps)
	case steps > 0:
		err = m.Steps(steps)
	case down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	v, dirty, _ := m.Version()
	fmt.Printf("schema at version %d (dirty=%v)\n", v, dirty)
	return nil
}

func resolveDSN(flagURL string) string {
	if flagURL != "" {
		return flagURL
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		return env
	}
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "foodguard")
	pass := envOr("DB_PASSWORD", "foodguard-dev")
	name := envOr("DB_NAME", "foodguard")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
