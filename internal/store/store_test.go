package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "test.sqlite3"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesAllExpectedTables(t *testing.T) {
	s := openTestStore(t)

	for _, tbl := range expectedSchema {
		var name string
		err := s.db.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tbl.Name).Scan(&name)
		require.NoErrorf(t, err, "table %s should exist", tbl.Name)
		require.Equal(t, tbl.Name, name)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sqlite3")

	s1, err := Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO user_balance (guild, user, coins) VALUES ('g', 'u', 100)")
		require.NoError(t, err)
		return context.DeadlineExceeded
	})
	require.Error(t, err)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_balance").Scan(&count))
	require.Equal(t, 0, count)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO user_balance (guild, user, coins) VALUES ('g', 'u', 100)")
		return err
	})
	require.NoError(t, err)

	var coins float64
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT coins FROM user_balance WHERE guild='g' AND user='u'").Scan(&coins))
	require.Equal(t, 100.0, coins)
}

func TestSeed_PopulatesEmptyTablesOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx))

	var questCount, itemCount int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quest_template").Scan(&questCount))
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM shop_item").Scan(&itemCount))
	require.Greater(t, questCount, 0)
	require.Greater(t, itemCount, 0)

	// Re-seeding is a no-op once rows exist.
	_, err := s.db.ExecContext(ctx, "DELETE FROM quest_template WHERE id > 1")
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx))

	var afterCount int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quest_template").Scan(&afterCount))
	require.Equal(t, 1, afterCount)
}

func TestBackup_CreatesRotatedSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	backupDir := filepath.Join(t.TempDir(), "backups")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	defer func() { stampNow = func() time.Time { return time.Now().UTC() } }()

	var paths []string
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		stampNow = func() time.Time { return ts }
		p, err := s.Backup(ctx, backupDir, 2)
		require.NoError(t, err)
		paths = append(paths, p)
	}

	entries, err := filepath.Glob(filepath.Join(backupDir, "backup-*.sqlite3"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestVerifyIntegrity_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sqlite3")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite database"), 0o644))

	require.Error(t, verifyIntegrity(context.Background(), path))
}

func TestVerifyIntegrity_PassesHealthyDatabase(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, verifyIntegrity(context.Background(), s.path))
}

func TestRecoverFromBackup_SkipsCorruptNewerSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	validPath := filepath.Join(backupDir, "backup-20260101-000000.sqlite3")
	validStore, err := Open(ctx, validPath, zerolog.Nop())
	require.NoError(t, err)
	_, err = validStore.db.ExecContext(ctx, "INSERT INTO user_balance (guild, user, coins) VALUES ('g', 'valid-snapshot', 42)")
	require.NoError(t, err)
	require.NoError(t, validStore.Close())

	corruptPath := filepath.Join(backupDir, "backup-20260101-000100.sqlite3")
	require.NoError(t, os.WriteFile(corruptPath, []byte("newer but corrupt"), 0o644))

	destPath := filepath.Join(dir, "restored.sqlite3")
	used, err := recoverFromBackup(ctx, destPath, backupDir)
	require.NoError(t, err)
	require.Equal(t, validPath, used)

	restored, err := Open(ctx, destPath, zerolog.Nop())
	require.NoError(t, err)
	defer restored.Close()
	var coins float64
	require.NoError(t, restored.db.QueryRowContext(ctx, "SELECT coins FROM user_balance WHERE user = 'valid-snapshot'").Scan(&coins))
	require.Equal(t, 42.0, coins)
}

func TestRecoverFromBackup_ErrorsWithNoSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	_, err := recoverFromBackup(ctx, filepath.Join(dir, "restored.sqlite3"), backupDir)
	require.Error(t, err)
}

func TestOpenWithRecovery_RecoversCorruptDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.sqlite3")
	backupDir := filepath.Join(dir, "backups")

	s, err := Open(ctx, dbPath, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "INSERT INTO user_balance (guild, user, coins) VALUES ('g', 'u', 7)")
	require.NoError(t, err)
	_, err = s.Backup(ctx, backupDir, 5)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, os.WriteFile(dbPath, []byte("corrupted live database"), 0o644))

	recovered, err := OpenWithRecovery(ctx, dbPath, backupDir, zerolog.Nop())
	require.NoError(t, err)
	defer recovered.Close()

	var coins float64
	require.NoError(t, recovered.db.QueryRowContext(ctx, "SELECT coins FROM user_balance WHERE user = 'u'").Scan(&coins))
	require.Equal(t, 7.0, coins)
}

func TestOpenWithRecovery_FailsWhenNoValidBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.sqlite3")
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	require.NoError(t, os.WriteFile(dbPath, []byte("corrupted live database"), 0o644))

	_, err := OpenWithRecovery(ctx, dbPath, backupDir, zerolog.Nop())
	require.Error(t, err)
}

func TestOpenWithRecovery_OpensHealthyDatabaseWithoutTouchingBackups(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.sqlite3")
	backupDir := filepath.Join(dir, "backups")

	s, err := OpenWithRecovery(ctx, dbPath, backupDir, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(backupDir)
	require.True(t, os.IsNotExist(err))
}
