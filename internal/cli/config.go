package cli

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Env holds environment defaults for command flags. A flag set on the
// command line always wins over its environment counterpart.
type Env struct {
	DB      string `env:"TABLETOP_DB"`
	Listen  string `env:"TABLETOP_LISTEN" envDefault:":8723"`
	Release string `env:"TABLETOP_RELEASE"`
	DataDir string `env:"TABLETOP_DATA_DIR"`
}

// LoadEnv reads the TABLETOP_* environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// resolveDB picks the database path: the --db flag, then TABLETOP_DB,
// then TABLETOP_DATA_DIR/tabletop.db.
func resolveDB(flag string, e Env) (string, error) {
	switch {
	case flag != "":
		return flag, nil
	case e.DB != "":
		return e.DB, nil
	case e.DataDir != "":
		return filepath.Join(e.DataDir, "tabletop.db"), nil
	}
	return "", NewExitError(ExitCommandError, "no database path: pass --db or set TABLETOP_DB")
}
