package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where cmd/migrate reads and creates SQL files.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// provider builds a goose provider for Postgres. SQLite stores are migrated
// from the gorm models instead (see MaybeRunDev).
func provider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down or status for the files in dir, reporting to stdout.
func Run(ctx context.Context, db *sql.DB, dir, command string) error {
	if dir == "" {
		return errors.New("migrate: dir is required")
	}
	return RunFS(ctx, db, os.DirFS(dir), command, os.Stdout)
}

// RunFS is Run over an arbitrary file system; progress lines go to out.
func RunFS(ctx context.Context, db *sql.DB, fsys fs.FS, command string, out io.Writer) error {
	p, err := provider(db, fsys)
	if err != nil {
		return err
	}
	switch command {
	case "up":
		results, err := p.Up(ctx)
		report(out, results...)
		return wrap("up", err)
	case "down":
		result, err := p.Down(ctx)
		if result != nil {
			report(out, result)
		}
		return wrap("down", err)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return wrap("status", err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-24s %s\n", applied, st.Source.Path)
		}
		return nil
	default:
		return fmt.Errorf("migrate: unsupported command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until targetVersion
// (YYYYMMDDHHMMSS) is the latest applied migration.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	p, err := provider(db, os.DirFS(dir))
	if err != nil {
		return err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current < target:
		results, err = p.UpTo(ctx, target)
	case current > target:
		results, err = p.DownTo(ctx, target)
	}
	report(os.Stdout, results...)
	return wrap(fmt.Sprintf("migrate to %d", target), err)
}

func report(out io.Writer, results ...*goose.MigrationResult) {
	for _, r := range results {
		fmt.Fprintf(out, "%-4s %s (%s)\n", r.Direction, r.Source.Path, r.Duration.Round(1e6))
	}
}

func wrap(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", step, err)
}
