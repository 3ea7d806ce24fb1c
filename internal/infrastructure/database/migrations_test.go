package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_create_users.up.sql": {Data: []byte(`CREATE TABLE test_users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"20260102_000000_add_email.up.sql":    {Data: []byte(`ALTER TABLE test_users ADD COLUMN email TEXT;`)},
		"README.md":                           {Data: []byte("ignored")},
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO test_users (name, email) VALUES (?, ?)", "a", "a@example.com"); err != nil {
		t.Fatalf("migrated schema unusable: %v", err)
	}

	pending, err := db.PendingMigrations(ctx, testMigrations())
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	fsys["20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE broken (;`)}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	pending, err := db.PendingMigrations(ctx, fsys)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %v, want only the broken migration", pending)
	}
}

func TestPendingMigrations_BeforeMigrate(t *testing.T) {
	db := openTestDB(t)

	pending, err := db.PendingMigrations(context.Background(), testMigrations())
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].Version != "20260101_000000" || pending[1].Version != "20260102_000000" {
		t.Errorf("pending order = %s, %s; want oldest first", pending[0].Version, pending[1].Version)
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOk      bool
	}{
		{"20261014_120000_messages.up.sql", "20261014_120000", "messages", true},
		{"20261014_120000_add_topic_index.up.sql", "20261014_120000", "add_topic_index", true},
		{"20261014_120000_messages.down.sql", "", "", false},
		{"20261014_120000_messages.sql", "", "", false},
		{"invalid.up.sql", "", "", false},
		{"readme.txt", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v; want %q, %q, %v",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOk)
			}
		})
	}
}
