// Package initialize 实现 init 子命令：保存配置、准备空的 game root 与版本模板目录。
package initialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/profile"
	"github.com/John-Robertt/ksm/internal/reflist"
)

// Options 对应 init 子命令的开关。
type Options struct {
	// Force 覆盖已存在的配置文件/符号链接，并清空非空的 game root。
	Force bool
	// DesktopSymlink 是要创建的指向 game root 的符号链接（绝对路径）；空串表示不创建。
	DesktopSymlink string
}

// Result 是一次 init 的结果。
type Result struct {
	Config          config.Config
	TemplateFolders int
	// CaseSensitive 为 true 表示 game root 位于大小写敏感的文件系统上（只警告，不失败）。
	CaseSensitive bool
	Symlink       string
}

// Warned 报告本次 init 是否产生了需要用户注意的警告。
func (r Result) Warned() bool { return r.CaseSensitive }

// Run 执行 init。返回的 error 一定是 *domain.Error（或 nil）。
func Run(ctx context.Context, file string, fc config.FileConfig, opt Options, log zerolog.Logger) (Result, error) {
	var res Result

	cfg, err := config.Resolve(file, fc)
	if err != nil {
		return res, err
	}
	p, err := profile.ForEdition(cfg.Edition)
	if err != nil {
		return res, err
	}

	// 模板列表先读：缺失时不留下半初始化的状态。
	foldersPath := p.AssetPath(cfg.AssetsDir, p.PCFolders)
	folders, err := reflist.Load(foldersPath)
	if err != nil {
		return res, &domain.Error{Kind: domain.KindPathMissing, Op: "读取版本模板目录列表（检查 assetsDir）", Path: foldersPath, Err: err}
	}

	if err := preflight(cfg, opt); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, &domain.Error{Kind: domain.KindFileSystem, Op: "init 被取消", Err: err}
	}

	cfg, err = config.Save(file, fc, opt.Force)
	if err != nil {
		return res, err
	}
	res.Config = cfg
	log.Info().Str("path", cfg.File).Msg("已写入配置文件")

	if err := fsx.EnsureDir(cfg.GameRoot); err != nil {
		return res, &domain.Error{Kind: domain.KindFileSystem, Op: "创建 game root", Path: cfg.GameRoot, Err: err}
	}
	sensitive, err := fsx.IsCaseSensitive(cfg.GameRoot)
	if err != nil {
		return res, &domain.Error{Kind: domain.KindFileSystem, Op: "探测大小写敏感性", Path: cfg.GameRoot, Err: err}
	}
	if sensitive {
		res.CaseSensitive = true
		log.Warn().
			Str("game_root", cfg.GameRoot).
			Msg("game root 位于大小写敏感的文件系统上；主机 SD 卡大小写不敏感，建议换用大小写不敏感的目录（例如挂载一个大小写不敏感的磁盘镜像）")
	}

	for _, rel := range folders.Entries() {
		dir := filepath.Join(cfg.GameRoot, filepath.FromSlash(rel))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, &domain.Error{Kind: domain.KindFileSystem, Op: "创建模板目录", Path: dir, Err: err}
		}
		res.TemplateFolders++
	}
	log.Info().Int("count", res.TemplateFolders).Str("edition", p.Name).Msg("已按版本模板创建目录")

	if opt.DesktopSymlink != "" {
		if err := os.Symlink(cfg.GameRoot, opt.DesktopSymlink); err != nil {
			return res, &domain.Error{Kind: domain.KindFileSystem, Op: "创建符号链接", Path: opt.DesktopSymlink, Err: err}
		}
		res.Symlink = opt.DesktopSymlink
		log.Info().Str("link", opt.DesktopSymlink).Msg("已创建指向 game root 的符号链接")
	}
	return res, nil
}

// preflight 检查 game root 是否为空、符号链接是否已存在；force 时直接清理。
func preflight(cfg config.Config, opt Options) error {
	if fi, err := os.Stat(cfg.GameRoot); err == nil && !fi.IsDir() {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "game root 不是目录", Path: cfg.GameRoot}
	}
	empty, err := fsx.IsDirEmpty(cfg.GameRoot)
	if err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "读取 game root", Path: cfg.GameRoot, Err: err}
	}
	if !empty {
		if !opt.Force {
			return &domain.Error{Kind: domain.KindFileSystem, Op: "game root 非空（使用 --force 清空）", Path: cfg.GameRoot}
		}
		if err := fsx.EmptyDir(cfg.GameRoot); err != nil {
			return &domain.Error{Kind: domain.KindFileSystem, Op: "清空 game root", Path: cfg.GameRoot, Err: err}
		}
	}

	if opt.DesktopSymlink == "" {
		return nil
	}
	exists, err := fsx.Exists(opt.DesktopSymlink)
	if err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "读取符号链接路径", Path: opt.DesktopSymlink, Err: err}
	}
	if !exists {
		return nil
	}
	if !opt.Force {
		return &domain.Error{Kind: domain.KindInvalidInput, Op: "符号链接路径已存在（使用 --force 覆盖）", Path: opt.DesktopSymlink}
	}
	if err := os.Remove(opt.DesktopSymlink); err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "删除已存在的符号链接", Path: opt.DesktopSymlink, Err: err}
	}
	return nil
}

// DesktopSymlinkPath 把符号链接名解析为绝对路径：相对名放在当前用户的 Desktop 下。
func DesktopSymlinkPath(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return name, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("读取用户主目录：%w", err)
	}
	return filepath.Join(home, "Desktop", name), nil
}

// DefaultSymlinkName 返回版本默认的符号链接名（kotor1 / kotor2）。
func DefaultSymlinkName(edition int) string {
	return fmt.Sprintf("kotor%d", edition)
}
