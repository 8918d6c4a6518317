package cli

import (
	"fmt"
	"io"
)

// Migrator applies schema migrations.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
}

// MigrateCommand runs `migrate up|down|version` and returns the exit code.
func MigrateCommand(m Migrator, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "usage: stockledger migrate up|down|version")
		return 2
	}
	var err error
	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
	default:
		_, _ = fmt.Fprintf(stderr, "migrate: unknown direction %q\n", args[0])
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate %s: %v\n", args[0], err)
		return 1
	}
	version, dirty, err := m.Version()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate version: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "schema version %d (dirty=%t)\n", version, dirty)
	return 0
}
