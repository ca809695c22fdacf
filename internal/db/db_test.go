package db

import (
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `UPDATE contacts SET assigned_to_id=? WHERE id=? AND state=?`
	if got := Rebind(SQLite, q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `UPDATE contacts SET assigned_to_id=$1 WHERE id=$2 AND state=$3`
	if got := Rebind(Postgres, q); got != want {
		t.Fatalf("postgres rebind: got %s want %s", got, want)
	}
}

func TestOpenSQLiteWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if DialectOf(conn) != SQLite {
		t.Fatalf("expected sqlite dialect")
	}
	if Path(dir) != filepath.Join(dir, ".leadline", "leadline.db") {
		t.Fatalf("unexpected path %s", Path(dir))
	}
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error without dsn")
	}
	if _, err := Open(Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
