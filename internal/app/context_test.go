package app

import (
	"context"
	"os"
	"testing"

	"leadline/internal/config"
	"leadline/internal/migrate"
)

func TestOpenBootstrapsWorkspace(t *testing.T) {
	dir := t.TempDir()
	eng, conn, err := Open(context.Background(), Options{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	v, err := migrate.Version(conn)
	if err != nil || v < 1 {
		t.Fatalf("expected migrated schema, got %d %v", v, err)
	}
	if eng.Config == nil || eng.Config.Business.Timezone != "Europe/Lisbon" {
		t.Fatalf("expected default config, got %+v", eng.Config)
	}
}

func TestResolveConfigReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte("business:\n  timezone: Nowhere/Land\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveConfig(dir); err == nil {
		t.Fatalf("expected invalid timezone to fail")
	}
	if err := os.WriteFile(config.Path(dir), []byte(config.GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ResolveConfig(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(cfg.Windows) != 5 {
		t.Fatalf("expected five windows, got %d", len(cfg.Windows))
	}
}
