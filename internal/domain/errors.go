package domain

import (
	"errors"
	"fmt"
)

// Kind 是致命错误的分类；CLI 只在顶层把它映射为退出码一次。
type Kind string

const (
	KindConfigMissing       Kind = "config_missing"
	KindConfigInvalid       Kind = "config_invalid"
	KindInvalidInput        Kind = "invalid_input"
	KindPathMissing         Kind = "path_missing"
	KindAlreadyFinalized    Kind = "already_finalized"
	KindBackupConflict      Kind = "backup_conflict"
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindFileSystem          Kind = "filesystem"
)

// 退出码与历史版本保持一致（脚本可能依赖这些数值）。
const (
	ExitOK                  = 0
	ExitConfigMissing       = 1
	ExitAlreadyFinalized    = 2
	ExitInvalidInput        = 3
	ExitFileSystem          = 4
	ExitBackupConflict      = 5
	ExitUnsupportedLanguage = 6
)

// Error 是管线内的结构化致命错误。
//
// Op 描述正在尝试的操作（用于用户可见输出），Path 是相关路径（可空）。
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s：%s", msg, e.Op)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s：%v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf 从 err 中提取 Kind；若不是 *Error，按文件系统错误处理。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFileSystem
}

// IsKind 判断 err 链上是否存在指定 Kind 的 *Error。
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ExitCode 把错误映射为进程退出码。
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindConfigMissing:
		return ExitConfigMissing
	case KindAlreadyFinalized:
		return ExitAlreadyFinalized
	case KindConfigInvalid, KindInvalidInput:
		return ExitInvalidInput
	case KindBackupConflict:
		return ExitBackupConflict
	case KindUnsupportedLanguage:
		return ExitUnsupportedLanguage
	default:
		return ExitFileSystem
	}
}
