// Package backup 负责 finalize 前的 game root 备份、finalize 标记以及从备份恢复。
package backup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
)

// Controller 管理一对 game root / 备份目录。
type Controller struct {
	GameRoot string
	BackupTo string

	// now 可在测试中替换。
	now func() time.Time
}

func New(gameRoot, backupTo string) *Controller {
	return &Controller{GameRoot: gameRoot, BackupTo: backupTo, now: time.Now}
}

// MarkerPath 返回 finalize 标记文件路径。
func (c *Controller) MarkerPath() string {
	return filepath.Join(c.GameRoot, domain.FinalizedMarker)
}

// IsFinalized 报告 game root 是否已带有 finalize 标记。
func (c *Controller) IsFinalized() (bool, error) {
	fi, err := os.Stat(c.MarkerPath())
	if err == nil {
		return fi.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Preflight 在任何修改之前检查 game root 的状态。
//
// - game root 不存在：KindPathMissing
// - 已 finalize 且未 force：KindAlreadyFinalized
func (c *Controller) Preflight(force bool) error {
	fi, err := os.Stat(c.GameRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.Error{Kind: domain.KindPathMissing, Op: "game root 不存在", Path: c.GameRoot}
		}
		return &domain.Error{Kind: domain.KindFileSystem, Op: "读取 game root", Path: c.GameRoot, Err: err}
	}
	if !fi.IsDir() {
		return &domain.Error{Kind: domain.KindPathMissing, Op: "game root 不是目录", Path: c.GameRoot}
	}
	if force {
		return nil
	}

	done, err := c.IsFinalized()
	if err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "读取 finalize 标记", Path: c.MarkerPath(), Err: err}
	}
	if done {
		return &domain.Error{
			Kind: domain.KindAlreadyFinalized,
			Op:   "game root 已经 finalize 过（使用 --force 强制重跑）",
			Path: c.GameRoot,
		}
	}
	return nil
}

// Backup 把 game root 完整复制到 BackupTo。
//
// - BackupTo 是文件：KindFileSystem
// - BackupTo 非空且未 force：KindBackupConflict
// - force：先清空 BackupTo 再复制
func (c *Controller) Backup(force bool) (fsx.CopyStats, error) {
	var st fsx.CopyStats

	if fi, err := os.Stat(c.BackupTo); err == nil && !fi.IsDir() {
		return st, &domain.Error{
			Kind: domain.KindFileSystem,
			Op:   "备份目标已存在且不是目录",
			Path: c.BackupTo,
			Err:  &fsx.PathTypeConflictError{Path: c.BackupTo, Want: "dir", Got: "file"},
		}
	} else if err != nil && !os.IsNotExist(err) {
		return st, &domain.Error{Kind: domain.KindFileSystem, Op: "读取备份目录", Path: c.BackupTo, Err: err}
	}

	empty, err := fsx.IsDirEmpty(c.BackupTo)
	if err != nil {
		return st, &domain.Error{Kind: domain.KindFileSystem, Op: "读取备份目录", Path: c.BackupTo, Err: err}
	}
	if !empty && !force {
		return st, &domain.Error{
			Kind: domain.KindBackupConflict,
			Op:   "备份目录非空（使用 --force-backup 覆盖，或 --no-backup 跳过）",
			Path: c.BackupTo,
		}
	}

	if err := fsx.EmptyDir(c.BackupTo); err != nil {
		return st, &domain.Error{Kind: domain.KindFileSystem, Op: "清空备份目录", Path: c.BackupTo, Err: err}
	}
	st, err = fsx.CopyTree(c.GameRoot, c.BackupTo)
	if err != nil {
		return st, &domain.Error{
			Kind: domain.KindFileSystem,
			Op:   "备份 game root",
			Path: c.BackupTo,
			Err:  errors.Wrapf(err, "复制 %q", c.GameRoot),
		}
	}
	return st, nil
}

// MarkFinalized 原子写入 finalize 标记，内容为 UTC 毫秒精度的 ISO-8601 时间戳。
func (c *Controller) MarkFinalized() error {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	stamp := now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if err := fsx.WriteFileAtomicReplace(c.GameRoot, domain.FinalizedMarker, []byte(stamp)); err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "写入 finalize 标记", Path: c.MarkerPath(), Err: err}
	}
	return nil
}

// FinalizedAt 读取标记中的时间戳；未 finalize 时返回零值与 false。
func (c *Controller) FinalizedAt() (time.Time, bool, error) {
	b, err := os.ReadFile(c.MarkerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return time.Time{}, true, errors.Wrapf(err, "解析 finalize 标记 %q", c.MarkerPath())
	}
	return ts, true, nil
}

// Restore 用备份替换 game root：删除 game root，再把 BackupTo 整体移回原处。
//
// 成功后 BackupTo 不再存在（备份被“消费”）。
func (c *Controller) Restore() error {
	fi, err := os.Stat(c.BackupTo)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.Error{Kind: domain.KindPathMissing, Op: "备份目录不存在，无法恢复", Path: c.BackupTo}
		}
		return &domain.Error{Kind: domain.KindFileSystem, Op: "读取备份目录", Path: c.BackupTo, Err: err}
	}
	if !fi.IsDir() {
		return &domain.Error{Kind: domain.KindPathMissing, Op: "备份路径不是目录", Path: c.BackupTo}
	}

	if err := os.RemoveAll(c.GameRoot); err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "删除 game root", Path: c.GameRoot, Err: err}
	}
	if err := fsx.Move(c.BackupTo, c.GameRoot); err != nil {
		return &domain.Error{
			Kind: domain.KindFileSystem,
			Op:   "把备份移回 game root",
			Path: c.GameRoot,
			Err:  errors.Wrapf(err, "移动 %q", c.BackupTo),
		}
	}
	return nil
}
