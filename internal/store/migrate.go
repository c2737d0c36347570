package store

import (
	"context"
	"fmt"
)

// migrate reconciles the live database against expectedSchema: it
// creates any table that doesn't exist yet, adds any column an
// existing table is missing, and rebuilds any table carrying a column
// listed in legacyColumns. Every identifier involved is drawn from the
// compiled-in expectedSchema/legacyColumns tables and re-validated
// against identifierPattern before being interpolated, per spec.md
// §4.1's allow-list requirement.
func (s *Store) migrate(ctx context.Context) error {
	for _, t := range expectedSchema {
		if !identifierPattern.MatchString(t.Name) {
			return fmt.Errorf("store: migrate: illegal table identifier %q", t.Name)
		}
		for _, c := range t.Columns {
			if !identifierPattern.MatchString(c.Name) {
				return fmt.Errorf("store: migrate: illegal column identifier %q.%q", t.Name, c.Name)
			}
		}
	}

	for _, t := range expectedSchema {
		if _, err := s.db.ExecContext(ctx, t.Create); err != nil {
			return fmt.Errorf("store: migrate: create %s: %w", t.Name, err)
		}

		existing, err := s.tableColumns(ctx, t.Name)
		if err != nil {
			return fmt.Errorf("store: migrate: inspect %s: %w", t.Name, err)
		}

		for _, c := range t.Columns {
			if existing[c.Name] {
				continue
			}
			def := c.Default
			if def == "" {
				def = "NULL"
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s DEFAULT %s", t.Name, c.Name, c.SQLType, def)
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: migrate: add column %s.%s: %w", t.Name, c.Name, err)
			}
			s.log.Info().Str("table", t.Name).Str("column", c.Name).Msg("added missing column")
		}

		if drop := legacyColumns[t.Name]; len(drop) > 0 {
			if err := s.dropColumns(ctx, t, existing, drop); err != nil {
				return fmt.Errorf("store: migrate: drop legacy columns on %s: %w", t.Name, err)
			}
		}
	}

	return nil
}

// tableColumns returns the set of column names SQLite currently
// reports for table, via PRAGMA table_info (table is already validated
// against identifierPattern by the caller).
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// dropColumns rebuilds table without the columns listed in drop.
// SQLite's ALTER TABLE ... DROP COLUMN exists in modern releases but
// mattn/go-sqlite3's bundled amalgamation cannot be assumed to carry
// it, so the migrator uses the portable create-copy-rename dance
// instead: build a new table from the expected spec (which already
// excludes the legacy columns by construction), copy over the
// surviving columns, drop the old table, and rename.
func (s *Store) dropColumns(ctx context.Context, t tableSpec, existing map[string]bool, drop []string) error {
	dropSet := map[string]bool{}
	for _, d := range drop {
		if !identifierPattern.MatchString(d) {
			return fmt.Errorf("illegal legacy column identifier %q", d)
		}
		dropSet[d] = true
	}

	hasLegacy := false
	for d := range dropSet {
		if existing[d] {
			hasLegacy = true
			break
		}
	}
	if !hasLegacy {
		return nil
	}

	tmpName := t.Name + "_migrate_tmp"
	createTmp := fmt.Sprintf("CREATE TABLE %s AS SELECT ", tmpName)
	first := true
	for _, c := range t.Columns {
		if dropSet[c.Name] || !existing[c.Name] {
			continue
		}
		if !first {
			createTmp += ", "
		}
		createTmp += c.Name
		first = false
	}
	createTmp += fmt.Sprintf(" FROM %s", t.Name)

	return s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.ExecContext(ctx, createTmp); err != nil {
			return fmt.Errorf("create tmp: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", t.Name)); err != nil {
			return fmt.Errorf("drop original: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmpName, t.Name)); err != nil {
			return fmt.Errorf("rename tmp: %w", err)
		}
		return nil
	})
}
