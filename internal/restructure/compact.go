package restructure

import (
	"os"

	"github.com/pkg/errors"

	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/scan"
)

// Compact 后序递归删除 root 下的空目录（root 本身保留），返回删除的目录数。
//
// 幂等：连续调用两次，第二次一定返回 0。
func Compact(root string) (int, error) {
	dirs, err := scan.Dirs(root)
	if err != nil {
		return 0, errors.Wrapf(err, "读取 %q", root)
	}

	removed := 0
	for _, d := range dirs {
		n, err := compactDir(d)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func compactDir(dir string) (int, error) {
	removed, err := Compact(dir)
	if err != nil {
		return removed, err
	}

	// 子目录处理完之后重新检查。
	empty, err := fsx.IsDirEmpty(dir)
	if err != nil {
		return removed, errors.Wrapf(err, "读取 %q", dir)
	}
	if !empty {
		return removed, nil
	}
	if err := os.Remove(dir); err != nil {
		return removed, errors.Wrapf(err, "删除空目录 %q", dir)
	}
	return removed + 1, nil
}
