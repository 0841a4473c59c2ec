package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/ksm/internal/app/finalize"
	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/profile"
)

var _ finalize.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的阶段进度输出。
//
// - 所有输出写到 stderr，不污染 stdout 的摘要
// - 逐文件处理的阶段（精确匹配、贴图）显示一个不定长的进度条，其余阶段一行一条
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
	bar       *progressbar.ProgressBar
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

var stageLabels = map[string]string{
	domain.StagePreflight:     "预检",
	domain.StageBackup:        "备份",
	domain.StageMarkFinalized: "写入 finalize 标记",
	domain.StageKeyFiles:      "删除未修改的关键文件",
	domain.StageRedundant:     "删除冗余贴图",
	domain.StageExactMatches:  "按参考列表移动文件",
	domain.StageTextures:      "整理 override 贴图",
	domain.StageOverrideTypes: "归类 override 文件",
	domain.StageLocalized:     "放置本地化资源",
	domain.StageCompact:       "清理空目录",
	domain.StageOutput:        "输出到主机目录结构",
}

func stageLabel(name string) string {
	if l, ok := stageLabels[name]; ok {
		return l
	}
	return name
}

// 这些阶段会逐文件发 OnProgress。
func hasFileProgress(name string) bool {
	return name == domain.StageExactMatches || name == domain.StageTextures
}

func (p *progressUI) OnStart(cfg config.Config, prof profile.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = time.Now()
	fmt.Fprintf(p.w, "[%s] ksm finalize (%s, %s)\n", p.startedAt.Format("15:04:05"), prof.Name, cfg.LanguageCode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", cfg.File)
	fmt.Fprintf(p.w, "  game_root: %s\n", cfg.GameRoot)
	fmt.Fprintf(p.w, "  backup_to: %s\n", cfg.BackupTo)
	fmt.Fprintf(p.w, "  output_to: %s\n", cfg.OutputTo)
	fmt.Fprintf(p.w, "  needs_processing_to: %s\n", cfg.NeedsProcessingTo)
	fmt.Fprintf(p.w, "  assets: %s\n", cfg.AssetsDir)
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnStageStart(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !hasFileProgress(name) {
		return
	}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(stageLabel(name)),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressUI) OnProgress(name string, c domain.Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("%s moved=%d skipped=%d", stageLabel(name), c.Moved, c.Skipped))
	_ = p.bar.Set(c.Found)
}

func (p *progressUI) OnStageDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}

	switch name {
	case domain.StagePreflight:
		fmt.Fprintf(p.w, "%s: 参考条目=%d (%s)\n", stageLabel(name), intField(fields, "found"), formatShortDuration(dur))
	case domain.StageBackup:
		fmt.Fprintf(p.w, "%s: files=%d (%s)\n", stageLabel(name), intField(fields, "found"), formatShortDuration(dur))
	case domain.StageMarkFinalized, domain.StageOutput:
		fmt.Fprintf(p.w, "%s (%s)\n", stageLabel(name), formatShortDuration(dur))
	case domain.StageKeyFiles, domain.StageRedundant, domain.StageCompact:
		fmt.Fprintf(p.w, "%s: removed=%d (%s)\n", stageLabel(name), intField(fields, "removed"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s: found=%d moved=%d skipped=%d (%s)\n",
			stageLabel(name),
			intField(fields, "found"),
			intField(fields, "moved"),
			intField(fields, "skipped"),
			formatShortDuration(dur),
		)
	}
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
