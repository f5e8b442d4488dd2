package db

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrateUp_Success(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("Expected version 0 before migrating, got %d", version)
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	// Second run is a no-op.
	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp (already current) failed: %v", err)
	}

	latest, err := LatestMigrationVersion(migrationsFS)
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != latest {
		t.Errorf("Expected version %d, got %d", latest, version)
	}
	if dirty {
		t.Error("Database should not be dirty after successful migration")
	}
}

func TestMigrateDownAndTo(t *testing.T) {
	db := newTestDB(t)
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	if err := db.MigrateDown(migrationsFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='motion_samples'`).Scan(&n); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if n != 0 {
		t.Error("Expected motion_samples to be dropped after rolling back one migration")
	}

	if err := db.MigrateTo(migrationsFS, 2); err != nil {
		t.Fatalf("MigrateTo failed: %v", err)
	}
	st, err := db.MigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if st.CurrentVersion != 2 || st.Pending() || !st.TableExists {
		t.Errorf("Unexpected status after MigrateTo: %+v", st)
	}
}

func TestMigrateForce(t *testing.T) {
	db := newTestDB(t)
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	if err := db.MigrateForce(migrationsFS, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}
	st, err := db.MigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if st.CurrentVersion != 1 || !st.Pending() {
		t.Errorf("Expected forced version 1 with pending migrations, got %+v", st)
	}
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	if err := RunMigrateCommand([]string{"status"}, path, &out); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 0") {
		t.Errorf("Unexpected status output: %s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"up"}, path, &out); err != nil {
		t.Fatalf("up failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 2") {
		t.Errorf("Unexpected up output: %s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"version", "1"}, path, &out); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 1") {
		t.Errorf("Unexpected version output: %s", out.String())
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing action", nil, "missing migrate action"},
		{"unknown action", []string{"sideways"}, "unknown migrate action"},
		{"version without number", []string{"version"}, "usage"},
		{"bad number", []string{"force", "abc"}, "invalid version number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunMigrateCommand(tt.args, path, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"help"}, path, &out); err != nil {
		t.Errorf("help should not fail: %v", err)
	}
}
