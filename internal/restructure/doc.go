// Package restructure 实现 game root 的对账与重整：精确匹配移动、贴图格式优先级、
// override 文件归类、本地化资源放置与空目录清理。
//
// 所有函数都是同步的：先把需要处理的文件列表完整物化，再执行移动。
// 返回的 error 只携带上下文（pkg/errors），由调用方统一映射为致命的文件系统错误；
// 唯一例外是语言码不受支持，此时直接返回 *domain.Error。
package restructure

import "github.com/John-Robertt/ksm/internal/domain"

// ProgressFunc 在每处理完一个文件后被调用（可为 nil）。
type ProgressFunc func(c domain.Counts)

func (f ProgressFunc) report(c domain.Counts) {
	if f != nil {
		f(c)
	}
}
