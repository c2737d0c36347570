package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Backup copies the live database into dir using SQLite's online
// backup API, so the snapshot is consistent even while writers are
// active, verifies the snapshot's integrity, then deletes the oldest
// snapshots beyond keep (spec.md §4.1 backup/rotation facility). A
// snapshot that fails its integrity check is removed immediately
// instead of being kept as a false sense of safety. The returned path
// is the new snapshot. Grounded on original_source/utils/backup.py's
// backup_database/verify_backup_integrity pair.
func (s *Store) Backup(ctx context.Context, dir string, keep int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: backup: mkdir %s: %w", dir, err)
	}

	name := fmt.Sprintf("backup-%s.sqlite3", stampNow().Format("20060102-150405"))
	dest := filepath.Join(dir, name)

	if err := s.backupTo(ctx, dest); err != nil {
		return "", err
	}

	if err := verifyIntegrity(ctx, dest); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("store: backup: snapshot failed integrity check: %w", err)
	}

	if err := s.rotate(dir, keep); err != nil {
		s.log.Error().Err(err).Msg("backup rotation failed")
	}

	return dest, nil
}

// verifyIntegrity opens path on its own connection and runs SQLite's
// PRAGMA integrity_check, the same check original_source/utils/
// backup.py's verify_backup_integrity runs. Any result other than the
// single row "ok" is treated as corruption.
func verifyIntegrity(ctx context.Context, path string) error {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open for integrity check: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("run integrity_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check reported %q", result)
	}
	return nil
}

// stampNow exists so tests can override the naming clock without
// reaching into time.Now directly; production always uses wall time
// since backup file names only need to be unique and sortable, not
// derived from the injected Clock used by game logic.
var stampNow = func() time.Time { return time.Now().UTC() }

func (s *Store) backupTo(ctx context.Context, destPath string) error {
	destDB, err := Open(ctx, destPath, s.log)
	if err != nil {
		return fmt.Errorf("store: backup: open destination: %w", err)
	}
	defer destDB.Close()

	srcConn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: backup: acquire source conn: %w", err)
	}
	defer srcConn.Close()

	destConn, err := destDB.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: backup: acquire destination conn: %w", err)
	}
	defer destConn.Close()

	var backupErr error
	err = destConn.Raw(func(destDriverConn any) error {
		destSQLite, ok := destDriverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("destination connection is not sqlite3")
		}
		return srcConn.Raw(func(srcDriverConn any) error {
			srcSQLite, ok := srcDriverConn.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("source connection is not sqlite3")
			}
			b, err := destSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return fmt.Errorf("start backup: %w", err)
			}
			defer b.Close()

			for {
				done, err := b.Step(-1)
				if err != nil {
					backupErr = fmt.Errorf("backup step: %w", err)
					return backupErr
				}
				if done {
					break
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	return backupErr
}

// rotate deletes backup-*.sqlite3 files in dir beyond the keep most
// recent (lexicographic order matches chronological order given the
// fixed timestamp format).
func (s *Store) rotate(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, "backup-") && strings.HasSuffix(n, ".sqlite3") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	if len(names) <= keep {
		return nil
	}
	for _, n := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil {
			s.log.Error().Err(err).Str("file", n).Msg("failed to remove old backup")
		}
	}
	return nil
}

// recoverFromBackup implements original_source/utils/backup.py's
// auto_recover_database: it walks dir's snapshots newest first,
// restores over dbPath from the first one that passes
// verifyIntegrity, and reports which snapshot it used.
func recoverFromBackup(ctx context.Context, dbPath, dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("store: recover: read backup dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, "backup-") && strings.HasSuffix(n, ".sqlite3") {
			names = append(names, n)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, n := range names {
		candidate := filepath.Join(dir, n)
		if err := verifyIntegrity(ctx, candidate); err != nil {
			continue
		}
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if err := os.WriteFile(dbPath, data, 0o644); err != nil {
			return "", fmt.Errorf("store: recover: restore %s: %w", candidate, err)
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			os.Remove(dbPath + suffix)
		}
		return candidate, nil
	}

	return "", fmt.Errorf("store: recover: no valid backup found in %s", dir)
}

// OpenWithRecovery is Open preceded by a startup corruption check
// (spec.md §4.1): if the database file at path already exists and
// fails PRAGMA integrity_check, it is replaced with the most recent
// snapshot in backupDir that itself passes the check before the
// normal open/migrate path runs. A corrupt database with no valid
// backup is a hard failure rather than silently starting on broken
// data.
func OpenWithRecovery(ctx context.Context, path, backupDir string, log zerolog.Logger) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		if checkErr := verifyIntegrity(ctx, path); checkErr != nil {
			log.Error().Err(checkErr).Str("path", path).Msg("database failed startup integrity check, attempting recovery")
			used, recErr := recoverFromBackup(ctx, path, backupDir)
			if recErr != nil {
				return nil, fmt.Errorf("store: database corrupt and recovery failed: %w", recErr)
			}
			log.Warn().Str("from", used).Msg("recovered database from backup snapshot")
		}
	}
	return Open(ctx, path, log)
}
