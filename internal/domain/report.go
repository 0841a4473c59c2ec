package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// 阶段名称（也是 Observer 事件名与报告中的 stage 字段）。
const (
	StagePreflight     = "preflight"
	StageBackup        = "backup"
	StageMarkFinalized = "mark_finalized"
	StageKeyFiles      = "key_files"
	StageRedundant     = "redundant_textures"
	StageExactMatches  = "exact_matches"
	StageTextures      = "textures"
	StageOverrideTypes = "override_types"
	StageLocalized     = "localized"
	StageCompact       = "compact"
	StageOutput        = "output"
	StageRestore       = "restore"
)

// RunReport 是一次 finalize/restore 的对外稳定输出（ksm-report.json）。
type RunReport struct {
	GameRoot string `json:"game_root"`
	Edition  int    `json:"edition"`
	Language string `json:"language"`
	Output   string `json:"output"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stages []StageResult `json:"stages"`

	// NeedsProcessing 是被挪去人工处理目录的贴图（相对 game root）；Finalize 之后去重并按字典序排列。
	NeedsProcessing []string `json:"needs_processing"`
	Warnings        []string `json:"warnings"`
	Warned          bool     `json:"warned"`

	Summary ReportSummary `json:"summary"`
}

type StageResult struct {
	Name    string `json:"name"`
	Found   int    `json:"found"`
	Moved   int    `json:"moved"`
	Skipped int    `json:"skipped"`
	Removed int    `json:"removed"`
}

type ReportSummary struct {
	Moved           int `json:"moved"`
	Skipped         int `json:"skipped"`
	Removed         int `json:"removed"`
	NeedsProcessing int `json:"needs_processing"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) needs_processing 去重后稳定排序（同一路径可能在 --force 重跑时重复出现）
// 3) summary 由 stages 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Stages == nil {
		r.Stages = []StageResult{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}

	seen := make(map[string]struct{}, len(r.NeedsProcessing))
	np := make([]string, 0, len(r.NeedsProcessing))
	for _, p := range r.NeedsProcessing {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		np = append(np, p)
	}
	sort.Strings(np)
	r.NeedsProcessing = np

	var s ReportSummary
	for _, st := range r.Stages {
		s.Moved += st.Moved
		s.Skipped += st.Skipped
		s.Removed += st.Removed
	}
	s.NeedsProcessing = len(r.NeedsProcessing)
	r.Summary = s
	r.Warned = r.Warned || len(r.NeedsProcessing) > 0 || len(r.Warnings) > 0
}

// Stage 返回指定阶段的结果；不存在时 ok=false。
func (r *RunReport) Stage(name string) (StageResult, bool) {
	for _, st := range r.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageResult{}, false
}

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
