package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/John-Robertt/ksm/internal/domain"
)

// ScanFiles 递归扫描 root 下的全部常规文件，并把结果完整物化为排序后的切片。
//
// 规则（硬约束）：
// - 调用方在拿到完整列表之后才允许移动文件（遍历期间绝不修改同一棵树）
// - excludeNames：root 下需要忽略的相对路径（例如 .finalized 标记），大小写不敏感
//
// 注意：扫描阶段只做 stat，不读文件内容。
func ScanFiles(root string, excludeNames []string) ([]domain.GameFile, error) {
	root = filepath.Clean(root)
	excluded := make(map[string]struct{}, len(excludeNames))
	for _, x := range excludeNames {
		excluded[strings.ToLower(filepath.ToSlash(x))] = struct{}{}
	}

	files := make([]domain.GameFile, 0, 1024)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := excluded[strings.ToLower(rel)]; ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, domain.GameFile{
			AbsPath: path,
			RelPath: rel,
			Name:    d.Name(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Glob 在 dir 下（不递归）查找文件名匹配 pattern 的常规文件，大小写不敏感。
//
// pattern 使用 doublestar 语法，例如 "*.{tga,dds,txi,tpc}"。dir 不存在时返回空结果。
func Glob(dir, pattern string) ([]string, error) {
	pattern = strings.ToLower(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ok, err := doublestar.Match(pattern, strings.ToLower(e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Dirs 返回 dir 的直接子目录（排序后）。
func Dirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
