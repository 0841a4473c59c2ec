package backup

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ksm/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// snapshot 返回 root 下全部文件的 相对路径 → 内容。
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	require.NoError(t, err)
	return out
}

func newFixture(t *testing.T) *Controller {
	t.Helper()
	base := t.TempDir()
	c := New(filepath.Join(base, "game"), filepath.Join(base, "backup"))
	writeFile(t, filepath.Join(c.GameRoot, "swkotor.exe"), "exe")
	writeFile(t, filepath.Join(c.GameRoot, "override", "a.tpc"), "tpc")
	writeFile(t, filepath.Join(c.GameRoot, "modules", "m.mod"), "mod")
	return c
}

func TestPreflight(t *testing.T) {
	c := newFixture(t)
	require.NoError(t, c.Preflight(false))

	require.NoError(t, c.MarkFinalized())
	err := c.Preflight(false)
	require.True(t, domain.IsKind(err, domain.KindAlreadyFinalized), "err=%v", err)
	require.Equal(t, domain.ExitAlreadyFinalized, domain.ExitCode(err))

	require.NoError(t, c.Preflight(true))
}

func TestPreflight_MissingGameRoot(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "b"))
	err := c.Preflight(true)
	require.True(t, domain.IsKind(err, domain.KindPathMissing), "err=%v", err)
}

func TestMarkFinalized_Timestamp(t *testing.T) {
	c := newFixture(t)
	fixed := time.Date(2024, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("X", 8*3600))
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.MarkFinalized())
	b, err := os.ReadFile(c.MarkerPath())
	require.NoError(t, err)
	require.Equal(t, "2024-03-03T21:06:07.890Z", string(b))

	at, ok, err := c.FinalizedAt()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, fixed.Equal(at))

	done, err := c.IsFinalized()
	require.NoError(t, err)
	require.True(t, done)
}

func TestBackup(t *testing.T) {
	c := newFixture(t)

	st, err := c.Backup(false)
	require.NoError(t, err)
	require.Equal(t, 3, st.Files)
	require.Equal(t, int64(9), st.Bytes)
	require.Equal(t, snapshot(t, c.GameRoot), snapshot(t, c.BackupTo))
}

func TestBackup_ConflictAndForce(t *testing.T) {
	c := newFixture(t)
	writeFile(t, filepath.Join(c.BackupTo, "stale.txt"), "old")

	_, err := c.Backup(false)
	require.True(t, domain.IsKind(err, domain.KindBackupConflict), "err=%v", err)
	require.Equal(t, domain.ExitBackupConflict, domain.ExitCode(err))

	_, err = c.Backup(true)
	require.NoError(t, err)
	require.Equal(t, snapshot(t, c.GameRoot), snapshot(t, c.BackupTo), "force 会先清空旧内容")
}

func TestBackup_TargetIsFile(t *testing.T) {
	c := newFixture(t)
	writeFile(t, c.BackupTo, "not a dir")

	_, err := c.Backup(true)
	require.True(t, domain.IsKind(err, domain.KindFileSystem), "err=%v", err)
}

func TestRestore_RoundTrip(t *testing.T) {
	c := newFixture(t)
	before := snapshot(t, c.GameRoot)

	_, err := c.Backup(false)
	require.NoError(t, err)

	// 模拟 finalize 对 game root 的修改。
	require.NoError(t, c.MarkFinalized())
	require.NoError(t, os.Rename(filepath.Join(c.GameRoot, "override", "a.tpc"), filepath.Join(c.GameRoot, "a.tpc")))
	require.NoError(t, os.RemoveAll(filepath.Join(c.GameRoot, "modules")))

	require.NoError(t, c.Restore())
	require.Equal(t, before, snapshot(t, c.GameRoot))

	_, err = os.Stat(c.BackupTo)
	require.True(t, os.IsNotExist(err), "恢复后备份被消费")
}

func TestRestore_MissingBackup(t *testing.T) {
	c := newFixture(t)
	err := c.Restore()
	require.True(t, domain.IsKind(err, domain.KindPathMissing), "err=%v", err)
	require.Equal(t, domain.ExitFileSystem, domain.ExitCode(err))

	_, statErr := os.Stat(c.GameRoot)
	require.NoError(t, statErr, "备份缺失时不能删除 game root")
}
