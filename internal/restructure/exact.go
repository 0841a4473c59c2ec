package restructure

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/reflist"
	"github.com/John-Robertt/ksm/internal/scan"
)

// MoveExactMatches 把 root 下文件名命中参考列表的文件移动到参考路径指示的位置。
//
// - 相对路径已与参考路径（大小写不敏感）一致：skipped
// - 否则创建目标目录并移动：moved（目标已被其他文件占用则失败，不覆盖）
// - 未命中：留在原处，交给后续阶段
func MoveExactMatches(root string, list *reflist.List, progress ProgressFunc) (domain.Counts, error) {
	var c domain.Counts

	files, err := scan.ScanFiles(root, []string{domain.FinalizedMarker})
	if err != nil {
		return c, errors.Wrapf(err, "扫描 %q", root)
	}

	for _, f := range files {
		c.Found++

		ref, ok := list.Match(f.Name)
		if !ok {
			progress.report(c)
			continue
		}
		if reflist.SameRel(f.RelPath, ref) {
			c.Skipped++
			progress.report(c)
			continue
		}

		dst := filepath.Join(root, filepath.FromSlash(ref))
		if err := fsx.Move(f.AbsPath, dst); err != nil {
			return c, errors.Wrapf(err, "移动 %q -> %q", f.RelPath, ref)
		}
		c.Moved++
		progress.report(c)
	}
	return c, nil
}

// lookupCI 在 dir 的直接子项中按大小写不敏感查找 name，返回实际存在的路径。
func lookupCI(dir, name string) (string, bool, error) {
	exact := filepath.Join(dir, name)
	if _, err := os.Lstat(exact); err == nil {
		return exact, true, nil
	} else if !os.IsNotExist(err) {
		return "", false, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), true, nil
		}
	}
	return "", false, nil
}
