package domain

// GameFile 描述一次扫描得到的常规文件（只做 stat，不读内容）。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - RelPath 使用 '/' 分隔（与参考列表格式一致）
type GameFile struct {
	AbsPath string
	RelPath string
	Name    string
	Size    int64
}

// FinalizedMarker 是 game root 下的 finalize 标记文件名。
const FinalizedMarker = ".finalized"

// Counts 是单个阶段的计数（found/moved/skipped/removed）。
type Counts struct {
	Found   int
	Moved   int
	Skipped int
	Removed int
}

// Result 把计数转换为报告中的阶段结果。
func (c Counts) Result(stage string) StageResult {
	return StageResult{
		Name:    stage,
		Found:   c.Found,
		Moved:   c.Moved,
		Skipped: c.Skipped,
		Removed: c.Removed,
	}
}
