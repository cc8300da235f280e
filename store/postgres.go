package store

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/joshuarp/controller-sdk/config"
)

// OpenPostgres connects to Postgres using the database.* config keys and
// wraps the connection in an SQLXStore.
func OpenPostgres(cfg config.Provider) (*SQLXStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbString(cfg, "host"),
		dbInt(cfg, "port"),
		dbString(cfg, "user"),
		dbString(cfg, "password"),
		dbString(cfg, "name"),
		dbString(cfg, "ssl_mode"),
	)

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to ping postgres: %w", err)
	}

	return NewSQLXStore(db), nil
}

func dbString(cfg config.Provider, key string) string {
	configKey := "database." + key
	if cfg.IsSet(configKey) {
		return cfg.GetString(configKey)
	}
	return cfg.GetString(envKey(key))
}

func dbInt(cfg config.Provider, key string) int {
	configKey := "database." + key
	if cfg.IsSet(configKey) {
		return cfg.GetInt(configKey)
	}
	return cfg.GetInt(envKey(key))
}

func envKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r == '.' {
			r = '_'
		}
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, r)
	}
	return "DATABASE_" + string(out)
}
