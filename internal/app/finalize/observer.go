package finalize

import (
	"time"

	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/profile"
)

// Observer 用于把“阶段开始/结束/逐文件进度”从管线中解耦出来。
//
// 约束：
// - finalize 包只负责发事件，不做任何终端输出。
// - 所有事件都在调用 Execute 的 goroutine 上同步发出。
type Observer interface {
	// OnStart 在 Execute 开始时调用一次。
	OnStart(cfg config.Config, p profile.Profile)
	// OnStageStart 在每个阶段开始前调用。
	OnStageStart(name string)
	// OnProgress 在阶段内每处理完一个文件后调用（只有逐文件处理的阶段会发）。
	OnProgress(name string, c domain.Counts)
	// OnStageDone 在阶段成功结束时调用（fields 是阶段统计）。
	OnStageDone(name string, fields map[string]any, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.Config, profile.Profile)            {}
func (nopObserver) OnStageStart(string)                               {}
func (nopObserver) OnProgress(string, domain.Counts)                  {}
func (nopObserver) OnStageDone(string, map[string]any, time.Duration) {}
