package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/clubledger-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_plans": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_plans_name",
			"CHECK (base_amount >= 0)",
			"CHECK (sibling_discount_pct BETWEEN 0 AND 100)",
			"grace_days integer NOT NULL DEFAULT 5",
		},
		"create_enrollments": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_enrollments_student_code",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_enrollments_national_id",
			"FOREIGN KEY (plan_id) REFERENCES plans(id)",
		},
		"create_payment_proofs": {
			"FOREIGN KEY (enrollment_id) REFERENCES enrollments(id) ON DELETE CASCADE",
			"ux_payment_proofs_transaction_number",
			"WHERE transaction_number IS NOT NULL",
		},
		"create_products": {
			"CHECK (stock_on_hand >= 0)",
			"version bigint NOT NULL DEFAULT 0",
			"CREATE TABLE IF NOT EXISTS stock_movements",
			"DROP TABLE IF EXISTS stock_movements",
		},
		"create_sales": {
			"CHECK (total = subtotal - discount)",
			"FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_sales_code",
		},
		"create_outbox_events": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"WHERE published_at IS NULL",
		},
	}

	for suffix, checks := range cases {
		t.Run(suffix, func(t *testing.T) {
			content := readMigration(t, suffix)
			for _, sub := range checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected shipped migrations to validate, got %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "add_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Sale Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_sale_notes.sql") {
		t.Fatalf("unexpected file name %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"20260101000000_first.sql":  "-- +goose Down\n-- +goose Up\n",
		"20260101000000_second.sql": "-- +goose Up\n-- +goose Down\n",
		"20261399000000_third.sql":  "-- +goose Up\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"precedes", "already used", "not a timestamp", "missing"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Late Fee Column!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_late_fee_column.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated file should validate: %v", err)
	}

	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for empty slug")
	}
}

func TestEmbeddedMatchesDirectory(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) == 0 || len(onDisk) != len(embedded) {
		t.Fatalf("expected embedded files to mirror disk: disk=%d embedded=%d", len(onDisk), len(embedded))
	}
}
