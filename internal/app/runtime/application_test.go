package runtime

import (
	"testing"

	"github.com/dvimperial/tracking_service/internal/config"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

func TestBuildStoreFallsBackToMemory(t *testing.T) {
	cfg := config.Default()

	store, db, err := buildStore(cfg, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	if store != nil || db != nil {
		t.Fatal("expected nil store and db without a dsn")
	}
}

func TestOpenDatabaseRequiresDriver(t *testing.T) {
	if _, err := openDatabase(config.DatabaseConfig{DSN: "postgres://localhost"}); err == nil {
		t.Fatal("expected error without driver")
	}
}
