package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

const migrateUsage = `Usage: deadreckon migrate <action>

Actions:
  up               apply all pending migrations
  down             roll back the most recent migration
  status           show the current schema version
  version <n>      migrate up or down to version n
  force <n>        record version n without running it (dirty recovery)
`

// RunMigrateCommand handles the 'migrate' subcommand.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 || args[0] == "help" {
		fmt.Fprint(out, migrateUsage)
		if len(args) < 1 {
			return errors.New("missing migrate action")
		}
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	versionArg := func() (int, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("usage: deadreckon migrate %s <version>", args[0])
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid version number: %s", args[1])
		}
		return v, nil
	}

	switch args[0] {
	case "up":
		err = database.MigrateUp(migrationsFS)
	case "down":
		err = database.MigrateDown(migrationsFS)
	case "version":
		var v int
		if v, err = versionArg(); err == nil {
			err = database.MigrateTo(migrationsFS, uint(v))
		}
	case "force":
		var v int
		if v, err = versionArg(); err == nil {
			err = database.MigrateForce(migrationsFS, v)
		}
	case "status":
	default:
		fmt.Fprint(out, migrateUsage)
		return fmt.Errorf("unknown migrate action: %s", args[0])
	}
	if err != nil {
		return err
	}

	st, err := database.MigrationStatus(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d\n", st.CurrentVersion)
	fmt.Fprintf(out, "Latest version: %d\n", st.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", st.Dirty)
	if st.Dirty {
		fmt.Fprintln(out, "WARNING: a migration failed mid-run; inspect the database, then run: deadreckon migrate force <version>")
	}
	return nil
}
