// Package finalize 把 game root 重整为主机移植版期望的目录结构。
//
// 一次 finalize 的固定前缀是 preflight → backup → mark_finalized，
// 之后按 profile.Profile.Stages 的顺序执行版本相关的阶段。
// 任何阶段的文件系统错误都是致命的：立即中止，不做部分重试。
package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/ksm/internal/backup"
	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/profile"
	"github.com/John-Robertt/ksm/internal/reflist"
	"github.com/John-Robertt/ksm/internal/restructure"
)

// Options 对应 finalize 子命令的开关。
type Options struct {
	// Force 忽略 finalize 标记，允许重跑。
	Force bool
	// NoBackup 跳过备份阶段。
	NoBackup bool
	// ForceBackup 备份目录非空时先清空再备份。
	ForceBackup bool
}

// Execute 执行一次 finalize，并返回本次的报告。
//
// 返回的 error 一定是 *domain.Error（或 nil）；调用方只需在顶层映射一次退出码。
// 报告总是会尽力写到 cfg.ReportPath()（失败时也写，便于排查中止在哪一步）。
func Execute(ctx context.Context, cfg config.Config, p profile.Profile, opt Options, log zerolog.Logger, obs Observer) (domain.RunReport, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	rc := &RunContext{
		Config:  cfg,
		Profile: p,
		Options: opt,
		Log:     log.With().Str("game_root", cfg.GameRoot).Logger(),
		Obs:     obs,
		Report: domain.RunReport{
			GameRoot:        cfg.GameRoot,
			Edition:         p.Edition,
			Language:        cfg.LanguageCode,
			StartedAt:       time.Now().UTC(),
			Stages:          make([]domain.StageResult, 0, len(p.Stages)+3),
			NeedsProcessing: []string{},
			Warnings:        []string{},
		},
		backup: backup.New(cfg.GameRoot, cfg.BackupTo),
	}

	obs.OnStart(cfg, p)

	err := rc.run(ctx)

	rc.Report.FinishedAt = time.Now().UTC()
	rc.Report.Finalize()

	if werr := writeReport(cfg.ReportPath(), rc.Report); werr != nil {
		rc.Log.Error().Err(werr).Str("path", cfg.ReportPath()).Msg("写入报告失败")
		if err == nil {
			err = &domain.Error{Kind: domain.KindFileSystem, Op: "写入报告", Path: cfg.ReportPath(), Err: werr}
		}
	}
	return rc.Report, err
}

func (rc *RunContext) run(ctx context.Context) error {
	if err := rc.stage(ctx, domain.StagePreflight, rc.preflight); err != nil {
		return err
	}
	if rc.Options.NoBackup {
		rc.Log.Info().Msg("跳过备份（--no-backup）")
	} else if err := rc.stage(ctx, domain.StageBackup, rc.backUp); err != nil {
		return err
	}
	if err := rc.stage(ctx, domain.StageMarkFinalized, rc.markFinalized); err != nil {
		return err
	}

	stages := rc.stages()
	for _, name := range rc.Profile.Stages {
		fn, ok := stages[name]
		if !ok {
			return &domain.Error{Kind: domain.KindConfigInvalid, Op: fmt.Sprintf("未知阶段 %q", name)}
		}
		if err := rc.stage(ctx, name, fn); err != nil {
			return err
		}
	}
	return nil
}

type stageFunc func() (domain.Counts, error)

func (rc *RunContext) stages() map[string]stageFunc {
	return map[string]stageFunc{
		domain.StageKeyFiles:      rc.removeKeyFiles,
		domain.StageRedundant:     rc.removeRedundantTextures,
		domain.StageExactMatches:  rc.moveExactMatches,
		domain.StageTextures:      rc.reconcileTextures,
		domain.StageOverrideTypes: rc.moveOverrideTypes,
		domain.StageLocalized:     rc.moveLocalized,
		domain.StageCompact:       rc.compact,
		domain.StageOutput:        rc.output,
	}
}

// stage 执行单个阶段：发事件、计时、记录计数，并把非领域错误统一转成致命的文件系统错误。
func (rc *RunContext) stage(ctx context.Context, name string, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: fmt.Sprintf("在阶段 %s 之前被取消", name), Err: err}
	}

	rc.Obs.OnStageStart(name)
	started := time.Now()

	c, err := fn()
	if err != nil {
		rc.afterStage = nil
		rc.Log.Error().Str("stage", name).Err(err).Msg("阶段失败")
		return tryFS(name, err)
	}

	dur := time.Since(started)
	rc.record(c.Result(name))
	rc.Log.Debug().
		Str("stage", name).
		Int("found", c.Found).
		Int("moved", c.Moved).
		Int("skipped", c.Skipped).
		Int("removed", c.Removed).
		Dur("took", dur).
		Msg("阶段完成")
	rc.Obs.OnStageDone(name, map[string]any{
		"found":   c.Found,
		"moved":   c.Moved,
		"skipped": c.Skipped,
		"removed": c.Removed,
	}, dur)
	rc.flushAfterStage()
	return nil
}

// tryFS 保留已分类的 *domain.Error，其余错误一律视为文件系统错误。
func tryFS(stage string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return &domain.Error{Kind: domain.KindFileSystem, Op: fmt.Sprintf("阶段 %s 的文件操作失败", stage), Err: err}
}

func (rc *RunContext) progress(name string) restructure.ProgressFunc {
	return func(c domain.Counts) { rc.Obs.OnProgress(name, c) }
}

func (rc *RunContext) overrideDir() string {
	return filepath.Join(rc.Config.GameRoot, "override")
}

func (rc *RunContext) preflight() (domain.Counts, error) {
	if err := rc.backup.Preflight(rc.Options.Force); err != nil {
		return domain.Counts{}, err
	}
	if rc.Options.Force {
		if done, _ := rc.backup.IsFinalized(); done {
			rc.Log.Warn().Msg("game root 已经 finalize 过，--force 强制重跑")
		}
	}
	if err := rc.loadLists(); err != nil {
		return domain.Counts{}, err
	}
	return domain.Counts{Found: rc.list.Len()}, nil
}

// loadLists 在任何修改之前加载参考列表，缺失时尽早失败。
func (rc *RunContext) loadLists() error {
	path := rc.Profile.AssetPath(rc.Config.AssetsDir, rc.Profile.FilesList)
	list, err := reflist.Load(path)
	if err != nil {
		return listError(path, err)
	}
	if list.Len() == 0 {
		rc.Warn(fmt.Sprintf("参考文件列表为空：%s", path))
	}
	if amb := list.Ambiguous(); len(amb) > 0 {
		rc.Log.Warn().
			Int("count", len(amb)).
			Strs("names", headStrings(amb, 10)).
			Msg("参考文件列表中存在同名条目，按首条匹配")
	}
	rc.list = list

	rc.rootOverrides = map[string]struct{}{}
	if rc.Profile.RootOverrideList == "" {
		return nil
	}
	path = rc.Profile.AssetPath(rc.Config.AssetsDir, rc.Profile.RootOverrideList)
	ro, err := reflist.Load(path)
	if err != nil {
		return listError(path, err)
	}
	for _, e := range ro.Entries() {
		rc.rootOverrides[strings.ToLower(filepath.Base(filepath.FromSlash(e)))] = struct{}{}
	}
	rc.Log.Debug().Int("files", list.Len()).Int("root_overrides", len(rc.rootOverrides)).Msg("参考列表已加载")
	return nil
}

func listError(path string, err error) error {
	var nf *reflist.NotFoundError
	if errors.As(err, &nf) {
		return &domain.Error{Kind: domain.KindPathMissing, Op: "找不到参考文件列表（检查 assetsDir）", Path: path, Err: err}
	}
	return &domain.Error{Kind: domain.KindFileSystem, Op: "读取参考文件列表", Path: path, Err: err}
}

func (rc *RunContext) backUp() (domain.Counts, error) {
	st, err := rc.backup.Backup(rc.Options.ForceBackup)
	if err != nil {
		return domain.Counts{}, err
	}
	rc.Log.Info().
		Str("to", rc.Config.BackupTo).
		Int("files", st.Files).
		Str("size", humanize.Bytes(uint64(st.Bytes))).
		Msg("备份完成")
	return domain.Counts{Found: st.Files}, nil
}

func (rc *RunContext) markFinalized() (domain.Counts, error) {
	return domain.Counts{}, rc.backup.MarkFinalized()
}

func (rc *RunContext) removeKeyFiles() (domain.Counts, error) {
	return restructure.RemoveKeyUnmodifiedFiles(rc.Config.GameRoot, rc.Profile.KeyFileHashes)
}

func (rc *RunContext) removeRedundantTextures() (domain.Counts, error) {
	return restructure.RemoveRedundantTextures(rc.overrideDir())
}

func (rc *RunContext) moveExactMatches() (domain.Counts, error) {
	return restructure.MoveExactMatches(rc.Config.GameRoot, rc.list, rc.progress(domain.StageExactMatches))
}

func (rc *RunContext) reconcileTextures() (domain.Counts, error) {
	res, err := restructure.ReconcileTextures(restructure.TextureParams{
		GameRoot:           rc.Config.GameRoot,
		OverrideDir:        rc.overrideDir(),
		NeedsProcessingDir: rc.Config.NeedsProcessingTo,
		List:               rc.list,
		RootOverrides:      rc.rootOverrides,
	}, rc.progress(domain.StageTextures))
	// 已挪走的文件即使随后失败也要留在报告里。
	rc.addNeedsProcessing(res.NeedsProcessing...)
	if err != nil {
		return res.Counts, err
	}
	if n := len(res.NeedsProcessing); n > 0 {
		rc.deferLog(func() {
			rc.Log.Warn().
				Int("count", n).
				Str("to", rc.Config.NeedsProcessingTo).
				Msg("部分贴图需要人工转换为 .tpc")
		})
	}
	return res.Counts, nil
}

func (rc *RunContext) moveOverrideTypes() (domain.Counts, error) {
	var total domain.Counts
	for _, t := range rc.Profile.OverrideTypes {
		c, err := restructure.MoveOverrideFileType(rc.overrideDir(), t.Ext, t.SubFolder)
		total.Found += c.Found
		total.Moved += c.Moved
		if err != nil {
			return total, err
		}
		rc.Log.Debug().Str("ext", t.Ext).Str("to", t.SubFolder).Int("moved", c.Moved).Msg("override 文件归类")
	}
	return total, nil
}

func (rc *RunContext) moveLocalized() (domain.Counts, error) {
	return restructure.MoveLocalizedFiles(rc.Config.GameRoot, rc.Config.LanguageCode, rc.Profile.Localization)
}

func (rc *RunContext) compact() (domain.Counts, error) {
	n, err := restructure.Compact(rc.Config.GameRoot)
	return domain.Counts{Removed: n}, err
}

func (rc *RunContext) output() (domain.Counts, error) {
	dst, err := restructure.TransformToOutput(rc.Config.GameRoot, rc.Config.OutputTo, rc.Profile.TitleID)
	if err != nil {
		return domain.Counts{}, err
	}
	rc.Report.Output = dst
	rc.Log.Info().Str("output", dst).Msg("已输出到主机目录结构")
	return domain.Counts{Moved: 1}, nil
}

func writeReport(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func headStrings(xs []string, n int) []string {
	if len(xs) <= n {
		return xs
	}
	return xs[:n]
}
