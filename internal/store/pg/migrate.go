package pg

import (
	"context"
	"fmt"
	"sort"
	"strings"

	migrations "github.com/crewgate/crewgate/migrations/postgres"
)

// RunMigrations aplica las migraciones *_up.sql embebidas, en orden.
// Los statements son idempotentes (IF NOT EXISTS), así que correrlas de
// nuevo sobre un schema ya migrado es seguro.
func (s *Store) RunMigrations(ctx context.Context) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.Type().IsRegular() && strings.HasSuffix(name, "_up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		b, err := migrations.FS.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("pg: exec %s: %w", f, err)
		}
	}
	return nil
}
