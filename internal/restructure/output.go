package restructure

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/John-Robertt/ksm/internal/infra/fsx"
)

// OutputPath 返回 game root 在主机目录布局中的最终位置：<outputTo>/<titleID>/romfs。
func OutputPath(outputTo, titleID string) string {
	return filepath.Join(outputTo, titleID, "romfs")
}

// TransformToOutput 把整个 game root 移到 OutputPath，返回目标路径。
func TransformToOutput(root, outputTo, titleID string) (string, error) {
	dst := OutputPath(outputTo, titleID)
	if err := fsx.EnsureDir(filepath.Dir(dst)); err != nil {
		return "", errors.Wrapf(err, "创建 %q", filepath.Dir(dst))
	}
	if err := fsx.Move(root, dst); err != nil {
		return "", errors.Wrapf(err, "移动 game root 到 %q", dst)
	}
	return dst, nil
}
