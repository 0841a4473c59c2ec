package restructure

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/profile"
	"github.com/John-Robertt/ksm/internal/scan"
)

// MoveOverrideFileType 把 overrideDir 根下（不递归）扩展名为 ext 的文件移入 override/<subFolder>/，保持文件名。
func MoveOverrideFileType(overrideDir, ext, subFolder string) (domain.Counts, error) {
	var c domain.Counts

	files, err := scan.Glob(overrideDir, "*."+ext)
	if err != nil {
		return c, errors.Wrapf(err, "查找 %q 下的 .%s 文件", overrideDir, ext)
	}

	target := filepath.Join(overrideDir, subFolder)
	for _, path := range files {
		c.Found++
		name := filepath.Base(path)
		if err := fsx.Move(path, filepath.Join(target, name)); err != nil {
			return c, errors.Wrapf(err, "移动 %q 到 %s/", name, subFolder)
		}
		c.Moved++
	}
	return c, nil
}

// MoveLocalizedFiles 按语言码把本地化资源放到版本要求的位置。
//
// 语言码不受该版本支持时返回 KindUnsupportedLanguage（致命）。
// Moved 计数：文件按 1 计，目录按其直接子项数计。
func MoveLocalizedFiles(root, lang string, loc profile.Localization) (domain.Counts, error) {
	var c domain.Counts

	if !loc.Supports(lang) {
		return c, &domain.Error{
			Kind: domain.KindUnsupportedLanguage,
			Op:   fmt.Sprintf("语言码 %q 不受该游戏版本支持", lang),
		}
	}

	if lang != loc.DefaultLanguage {
		for _, name := range loc.SuffixFiles {
			src, ok, err := lookupCI(root, name)
			if err != nil {
				return c, errors.Wrapf(err, "查找 %q", name)
			}
			if !ok {
				continue
			}
			c.Found++
			stem, ext := filepath.Base(name), filepath.Ext(name)
			stem = stem[:len(stem)-len(ext)]
			if err := fsx.Move(src, filepath.Join(root, stem+lang+ext)); err != nil {
				return c, errors.Wrapf(err, "重命名 %q", name)
			}
			c.Moved++
		}

		if contains(loc.VoicedLanguages, lang) {
			for _, name := range loc.SuffixFolders {
				n, err := moveFolder(root, name, filepath.Join(root, name+lang))
				if err != nil {
					return c, err
				}
				c.Moved += n
			}
		}
	}

	if len(loc.MoveFolders) > 0 {
		dstBase := filepath.Join(root, loc.BaseFolder, loc.Folders[lang])
		for _, name := range loc.MoveFolders {
			n, err := moveFolder(root, name, filepath.Join(dstBase, name))
			if err != nil {
				return c, err
			}
			c.Moved += n
		}
	}
	return c, nil
}

// moveFolder 把 root 下的目录 name（大小写不敏感）整体移动到 dst，返回其直接子项数。
// 目录不存在时什么也不做。
func moveFolder(root, name, dst string) (int, error) {
	src, ok, err := lookupCI(root, name)
	if err != nil {
		return 0, errors.Wrapf(err, "查找 %q", name)
	}
	if !ok {
		return 0, nil
	}
	fi, err := os.Stat(src)
	if err != nil {
		return 0, errors.Wrapf(err, "读取 %q", src)
	}
	if !fi.IsDir() {
		return 0, nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, errors.Wrapf(err, "读取 %q", src)
	}
	if err := fsx.Move(src, dst); err != nil {
		return 0, errors.Wrapf(err, "移动目录 %q", name)
	}
	return len(entries), nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
