package finalize

import (
	"github.com/rs/zerolog"

	"github.com/John-Robertt/ksm/internal/backup"
	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/profile"
	"github.com/John-Robertt/ksm/internal/reflist"
)

// RunContext 贯穿一次 finalize 的全部阶段：只读输入 + 累积中的报告。
//
// 不存在任何包级可变状态；并发执行两次 finalize（不同 game root）互不影响。
type RunContext struct {
	Config  config.Config
	Profile profile.Profile
	Options Options

	Log zerolog.Logger
	Obs Observer

	Report domain.RunReport

	backup        *backup.Controller
	list          *reflist.List
	rootOverrides map[string]struct{}

	// afterStage 在当前阶段的 OnStageDone 之后执行（阶段内的进度输出已结束）。
	afterStage []func()
}

// Warn 记录一条非致命警告（报告中 warned=true，退出码不变）。
func (rc *RunContext) Warn(msg string) {
	rc.Report.Warnings = append(rc.Report.Warnings, msg)
	rc.Report.Warned = true
	rc.Log.Warn().Msg(msg)
}

// addNeedsProcessing 记录需要人工处理的文件（相对 game root）。
func (rc *RunContext) addNeedsProcessing(paths ...string) {
	if len(paths) == 0 {
		return
	}
	rc.Report.NeedsProcessing = append(rc.Report.NeedsProcessing, paths...)
	rc.Report.Warned = true
}

func (rc *RunContext) record(res domain.StageResult) {
	rc.Report.Stages = append(rc.Report.Stages, res)
}

// deferLog 把日志推迟到当前阶段的 OnStageDone 之后再写。
func (rc *RunContext) deferLog(fn func()) {
	rc.afterStage = append(rc.afterStage, fn)
}

func (rc *RunContext) flushAfterStage() {
	fns := rc.afterStage
	rc.afterStage = nil
	for _, fn := range fns {
		fn()
	}
}
