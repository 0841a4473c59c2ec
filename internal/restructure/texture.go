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

// TexturesSubFolder 是 override 下存放贴图的子目录。
const TexturesSubFolder = "textures"

// 游戏加载贴图时 .tpc 优先于其它格式；这些扩展名在同名 .tpc 存在时永远不会被用到。
var shadowedByTPC = map[string]struct{}{
	".tga": {},
	".dds": {},
	".txi": {},
}

// RemoveRedundantTextures 删除 overrideDir（不递归）中被同目录同名 .tpc 覆盖的 .tga/.dds/.txi。
//
// “冗余”是静态性质，与参考列表无关，所以这一步在任何匹配之前执行。
func RemoveRedundantTextures(overrideDir string) (domain.Counts, error) {
	var c domain.Counts

	entries, err := os.ReadDir(overrideDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, errors.Wrapf(err, "读取 %q", overrideDir)
	}

	hasTPC := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		stem, ext := splitExt(e.Name())
		if ext == ".tpc" {
			hasTPC[stem] = struct{}{}
			c.Found++
		}
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		stem, ext := splitExt(e.Name())
		if _, ok := shadowedByTPC[ext]; !ok {
			continue
		}
		if _, ok := hasTPC[stem]; !ok {
			continue
		}
		p := filepath.Join(overrideDir, e.Name())
		if err := os.Remove(p); err != nil {
			return c, errors.Wrapf(err, "删除冗余贴图 %q", p)
		}
		c.Removed++
	}
	return c, nil
}

// TextureParams 是 ReconcileTextures 的输入。
type TextureParams struct {
	GameRoot           string
	OverrideDir        string
	NeedsProcessingDir string
	List               *reflist.List

	// RootOverrides 是必须留在 override 根的文件名（小写）；命中它们的贴图不做处理。
	RootOverrides map[string]struct{}
}

// TextureResult 是 ReconcileTextures 的输出。
type TextureResult struct {
	domain.Counts

	// NeedsProcessing 是被挪去人工处理目录的文件（相对 game root，'/' 分隔，处理顺序）。
	NeedsProcessing []string
}

// ReconcileTextures 处理 override 根下剩余的散装贴图（*.{tga,dds,txi,tpc}）。
//
//   - 命中参考列表且命中项属于 RootOverrides：保持不动（Skipped）
//   - 非 .tpc、未命中，但参考列表有同名 .tpc：移入人工处理目录（覆盖同名），记录但不报错
//   - 其余：移入 override/textures/
func ReconcileTextures(p TextureParams, progress ProgressFunc) (TextureResult, error) {
	var res TextureResult
	res.NeedsProcessing = []string{}

	files, err := scan.Glob(p.OverrideDir, "*.{tga,dds,txi,tpc}")
	if err != nil {
		return res, errors.Wrapf(err, "查找 %q 下的贴图", p.OverrideDir)
	}

	texturesDir := filepath.Join(p.OverrideDir, TexturesSubFolder)
	for _, path := range files {
		res.Found++
		name := filepath.Base(path)

		if ref, ok := p.List.Match(name); ok {
			if _, keep := p.RootOverrides[strings.ToLower(refBase(ref))]; keep {
				res.Skipped++
				progress.report(res.Counts)
				continue
			}
		} else if stem, ext := splitExt(name); ext != ".tpc" && p.List.HasBasename(stem+".tpc") {
			rel, err := filepath.Rel(p.GameRoot, path)
			if err != nil {
				rel = path
			}
			if err := fsx.MoveReplace(path, filepath.Join(p.NeedsProcessingDir, name)); err != nil {
				return res, errors.Wrapf(err, "移动 %q 到人工处理目录", rel)
			}
			res.NeedsProcessing = append(res.NeedsProcessing, filepath.ToSlash(rel))
			progress.report(res.Counts)
			continue
		}

		if err := fsx.Move(path, filepath.Join(texturesDir, name)); err != nil {
			return res, errors.Wrapf(err, "移动贴图 %q", name)
		}
		res.Moved++
		progress.report(res.Counts)
	}
	return res, nil
}

// splitExt 返回小写的 stem 与扩展名（含点）。
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimSuffix(name, ext)), strings.ToLower(ext)
}

func refBase(ref string) string {
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
