package finalize

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/ksm/internal/backup"
	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/restructure"
)

// Restore 删除已 finalize 的 game root 并从备份恢复。
//
// 恢复成功后，上一次 finalize 留下的 <outputTo>/<titleID>/romfs 也会被删除，
// 否则重新 finalize 时输出阶段会因目标已存在而失败。
func Restore(ctx context.Context, cfg config.Config, titleID string, log zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "恢复被取消", Err: err}
	}

	log = log.With().Str("stage", domain.StageRestore).Logger()
	if err := backup.New(cfg.GameRoot, cfg.BackupTo).Restore(); err != nil {
		return err
	}
	log.Info().Str("from", cfg.BackupTo).Str("to", cfg.GameRoot).Msg("已从备份恢复 game root")

	out := restructure.OutputPath(cfg.OutputTo, titleID)
	exists, err := fsx.Exists(out)
	if err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "读取上一次的输出", Path: out, Err: err}
	}
	if !exists {
		return nil
	}
	if err := os.RemoveAll(out); err != nil {
		return &domain.Error{Kind: domain.KindFileSystem, Op: "删除上一次的输出", Path: out, Err: err}
	}
	log.Info().Str("path", out).Msg("已删除上一次 finalize 的输出")
	return nil
}
