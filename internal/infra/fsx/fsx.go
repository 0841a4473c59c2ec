package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// TargetExistsError 表示移动目标已存在（本工具的移动默认不覆盖）。
type TargetExistsError struct {
	Src string
	Dst string
}

func (e *TargetExistsError) Error() string {
	return fmt.Sprintf("移动目标已存在：%q -> %q", e.Src, e.Dst)
}

func IsTargetExists(err error) bool {
	var e *TargetExistsError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// Move 把 src（文件或目录）移动到 dst，并按需创建 dst 的父目录。
//
// - dst 已存在：返回 TargetExistsError（不覆盖）
// - 同盘：rename
// - 跨盘：复制整棵树后删除 src（备份目录通常在另一块盘上）
func Move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		if !sameFile(src, dst) {
			return &TargetExistsError{Src: src, Dst: dst}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return move(src, dst)
}

// MoveReplace 与 Move 相同，但 dst 是常规文件时先删除它。
func MoveReplace(src, dst string) error {
	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !sameFile(src, dst) {
			if err := os.Remove(dst); err != nil {
				return err
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return move(src, dst)
}

func move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := Rename(src, dst)
	if err == nil || !IsCrossDevice(err) {
		return err
	}
	if _, err := CopyTree(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

// sameFile 处理大小写不敏感文件系统上“只改大小写”的 rename：此时 Lstat(dst) 命中的就是 src 本身。
func sameFile(a, b string) bool {
	fa, err := os.Lstat(a)
	if err != nil {
		return false
	}
	fb, err := os.Lstat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// CopyStats 是一次树复制的统计。
type CopyStats struct {
	Files int
	Dirs  int
	Bytes int64
}

// CopyTree 把 src 整棵树逐项复制到 dst（保持权限与修改时间；符号链接按链接本身复制）。
// dst 可以已存在（例如空的备份目录）。
func CopyTree(src, dst string) (CopyStats, error) {
	var st CopyStats
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return err
			}
			if rel != "." {
				st.Dirs++
			}
			return nil
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			st.Files++
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			n, err := copyFile(path, target, info)
			if err != nil {
				return err
			}
			st.Files++
			st.Bytes += n
			return nil
		default:
			// 设备文件/管道等不会出现在游戏目录里；遇到即跳过。
			return nil
		}
	})
	if err != nil {
		return st, err
	}

	// 目录 mtime 在写入子项后才能回填；倒序处理无必要，统一补一遍即可。
	_ = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil {
			_ = os.Chtimes(filepath.Join(dst, rel), info.ModTime(), info.ModTime())
		}
		return nil
	})
	return st, nil
}

func copyFile(src, dst string, info fs.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}
	return n, os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// IsDirEmpty 判断目录是否为空；目录不存在视为空。
func IsDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// EmptyDir 删除 dir 下的全部内容（保留 dir 本身）；dir 不存在时创建它。
func EmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDir 确保 dir 存在且是目录。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Exists 报告 path 是否存在（任何类型）。
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），目标已存在则覆盖。
//
// 临时文件必须与目标文件在同目录，以保证 rename 的原子性。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644)
}

// WriteFileAtomicNoOverwrite 与 WriteFileAtomicReplace 相同，但目标存在时返回 os.ErrExist。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		return os.ErrExist
	} else if !os.IsNotExist(err) {
		return err
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort。
	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// caseProbeName 是大小写敏感性探测使用的临时文件名。
const caseProbeName = ".case-sensitivity-test"

// IsCaseSensitive 在 dir 下写入一个探测文件，再用大写文件名删除它：删不掉说明文件系统大小写敏感。
// 探测文件无论结果如何都会被清理。
func IsCaseSensitive(dir string) (bool, error) {
	probe := filepath.Join(dir, caseProbeName)
	if err := os.WriteFile(probe, []byte(caseProbeName), 0o644); err != nil {
		return false, err
	}

	err := os.Remove(filepath.Join(dir, strings.ToUpper(caseProbeName)))
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		_ = os.Remove(probe)
		return false, err
	}
	if err := os.Remove(probe); err != nil {
		return true, err
	}
	return true, nil
}
