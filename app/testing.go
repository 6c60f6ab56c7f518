package app

import (
	"database/sql"
	"go-trip-api/config"
	"log"

	"github.com/redis/go-redis/v9"
)

// TestApp exposes the wired application to integration tests.
type TestApp struct {
	*Components
	DB     *sql.DB
	Config *config.Config
}

// NewTestApp builds the application on top of an existing database and redis client.
// The configuration must already be loaded into config.AppConfig.
func NewTestApp(db *sql.DB, rdb *redis.Client) *TestApp {
	cfg := config.AppConfig
	components, err := Build(&cfg, db, rdb)
	if err != nil {
		log.Fatalf("could not build test app: %v", err)
	}
	return &TestApp{Components: components, DB: db, Config: &cfg}
}
