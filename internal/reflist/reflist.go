// Package reflist 加载某个游戏版本的参考文件列表，并按文件名解析出它的规范位置。
//
// 参考文件列表是 UTF-8 文本：每行一个相对路径，'/' 分隔，行尾不保证有换行。
package reflist

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// NotFoundError 表示参考文件列表本身不存在。
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("找不到参考文件列表 %q：%v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// List 是按原始顺序保存的参考条目，加上按小写 basename 建立的索引。
//
// 同一 basename 出现多次时，索引只记录第一条（首条胜出）；其余记入 dupes 供上层告警。
type List struct {
	entries []string
	index   map[string]int
	dupes   map[string]int
}

// Load 读取并解析 path 指向的参考文件列表。
//
// 不去重、不校验；空行与 CRLF 行尾都被容忍。
func Load(p string) (*List, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: p, Err: err}
		}
		return nil, errors.Wrapf(err, "读取参考文件列表 %q", p)
	}
	return Parse(b), nil
}

// Parse 从内存中的列表内容构造 List。
func Parse(b []byte) *List {
	l := &List{
		entries: make([]string, 0, bytes.Count(b, []byte{'\n'})+1),
		index:   make(map[string]int, 1024),
		dupes:   map[string]int{},
	}

	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(sc.Text(), "\r"))
		if line == "" {
			continue
		}
		l.add(line)
	}
	return l
}

func (l *List) add(line string) {
	idx := len(l.entries)
	l.entries = append(l.entries, line)

	// 根级条目（不含 '/'）不参与匹配：匹配必须落在 "/<name>" 的整段边界上。
	slash := strings.LastIndexByte(line, '/')
	if slash < 0 || slash == len(line)-1 {
		return
	}
	key := strings.ToLower(line[slash+1:])
	if _, ok := l.index[key]; ok {
		l.dupes[key]++
		return
	}
	l.index[key] = idx
}

// Len 返回条目数（不含空行）。
func (l *List) Len() int { return len(l.entries) }

// Entries 返回条目副本（保持原顺序）。
func (l *List) Entries() []string {
	return append([]string(nil), l.entries...)
}

// Match 返回 basename 与 name 大小写不敏感相等的第一条参考路径。
func (l *List) Match(name string) (string, bool) {
	if l == nil || name == "" || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	idx, ok := l.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return l.entries[idx], true
}

// HasBasename 报告列表中是否存在 basename 为 name 的条目。
func (l *List) HasBasename(name string) bool {
	_, ok := l.Match(name)
	return ok
}

// Ambiguous 返回在列表中出现多次的 basename（小写，已排序）。
func (l *List) Ambiguous() []string {
	out := make([]string, 0, len(l.dupes))
	for k := range l.dupes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SameRel 判断 rel（'/' 分隔）与参考路径 ref 是否大小写不敏感地相等。
func SameRel(rel, ref string) bool {
	return strings.EqualFold(path.Clean(rel), path.Clean(ref))
}
