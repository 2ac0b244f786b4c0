package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// CreateSnapshot writes a consistent copy of the database to dest using
// VACUUM INTO. dest must not exist.
func (db *DB) CreateSnapshot(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("snapshot destination %s already exists", dest)
	}
	// VACUUM INTO takes a literal, not a bound parameter.
	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}
