package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/infra/fsx"
	"github.com/John-Robertt/ksm/internal/profile"
)

const (
	// DefaultFile 是未通过 -c/--config-file 或 KSM_CONFIG_FILE 指定时使用的配置文件名。
	DefaultFile = "config.json"
	// EnvFile 是指定配置文件路径的环境变量。
	EnvFile = "KSM_CONFIG_FILE"
	// DefaultAssetsDir 是 assetsDir 未配置时使用的目录（相对配置文件所在目录）。
	DefaultAssetsDir = "assets"
	// ReportFile 是 finalize 报告文件名（写在配置文件同目录）。
	ReportFile = "ksm-report.json"
)

// Edition 是游戏版本号；JSON 中既可以是数字也可以是数字字符串（"1"）。
type Edition int

func (e *Edition) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("edition 不是数字：%q", s)
		}
		*e = Edition(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("edition 必须是数字或数字字符串：%s", b)
	}
	*e = Edition(n)
	return nil
}

// FileConfig 对应配置文件的 JSON 结构（路径保持写入时的原样，可以是相对路径）。
type FileConfig struct {
	Edition           Edition `json:"edition"`
	LanguageCode      string  `json:"languageCode"`
	GameRoot          string  `json:"gameRoot"`
	BackupTo          string  `json:"backupTo"`
	OutputTo          string  `json:"outputTo"`
	NeedsProcessingTo string  `json:"needsProcessingTo"`
	AssetsDir         string  `json:"assetsDir,omitempty"`
}

// Config 是校验并解析后的最终配置：全部路径都是 clean + absolute。
type Config struct {
	File string
	Raw  FileConfig

	Edition           int
	LanguageCode      string
	GameRoot          string
	BackupTo          string
	OutputTo          string
	NeedsProcessingTo string
	AssetsDir         string
}

// Dir 返回配置文件所在目录（相对路径的基准）。
func (c Config) Dir() string { return filepath.Dir(c.File) }

// ReportPath 返回 finalize 报告的写入位置。
func (c Config) ReportPath() string { return filepath.Join(c.Dir(), ReportFile) }

// Load 读取、校验并解析配置文件。
//
// - 文件不存在：KindConfigMissing
// - 无法解析或字段不合法：KindConfigInvalid
// - 语言码不在已知列表中：KindUnsupportedLanguage
func Load(file string) (Config, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return Config{}, &domain.Error{Kind: domain.KindConfigInvalid, Op: "解析配置文件路径", Path: file, Err: err}
	}

	fc, exists, err := readFileConfig(abs)
	if err != nil {
		return Config{}, &domain.Error{Kind: domain.KindConfigInvalid, Op: "配置文件无法解析", Path: abs, Err: err}
	}
	if !exists {
		return Config{}, &domain.Error{
			Kind: domain.KindConfigMissing,
			Op:   "找不到配置文件（先运行 ksm init）",
			Path: abs,
			Err:  os.ErrNotExist,
		}
	}
	return Resolve(abs, fc)
}

// Resolve 以 file 所在目录为基准解析 fc 中的路径，并完成全部校验。
func Resolve(file string, fc FileConfig) (Config, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return Config{}, &domain.Error{Kind: domain.KindConfigInvalid, Op: "解析配置文件路径", Path: file, Err: err}
	}
	base := filepath.Dir(abs)

	invalid := func(format string, args ...any) error {
		return &domain.Error{Kind: domain.KindConfigInvalid, Op: fmt.Sprintf(format, args...), Path: abs}
	}

	required := []struct{ name, value string }{
		{"languageCode", fc.LanguageCode},
		{"gameRoot", fc.GameRoot},
		{"backupTo", fc.BackupTo},
		{"outputTo", fc.OutputTo},
		{"needsProcessingTo", fc.NeedsProcessingTo},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Config{}, invalid("缺少必填字段 %s", r.name)
		}
	}

	if _, err := profile.ForEdition(int(fc.Edition)); err != nil {
		return Config{}, invalid("不支持的游戏版本 %d（只支持 1 或 2）", fc.Edition)
	}
	lang := strings.TrimSpace(fc.LanguageCode)
	if !validLanguage(lang) {
		return Config{}, &domain.Error{
			Kind: domain.KindUnsupportedLanguage,
			Op:   fmt.Sprintf("不支持的语言码 %q（可选：%s）", lang, strings.Join(profile.LanguageCodes, ", ")),
			Path: abs,
		}
	}

	assets := fc.AssetsDir
	if strings.TrimSpace(assets) == "" {
		assets = DefaultAssetsDir
	}

	c := Config{
		File:              abs,
		Raw:               fc,
		Edition:           int(fc.Edition),
		LanguageCode:      lang,
		GameRoot:          absCleanFrom(base, fc.GameRoot),
		BackupTo:          absCleanFrom(base, fc.BackupTo),
		OutputTo:          absCleanFrom(base, fc.OutputTo),
		NeedsProcessingTo: absCleanFrom(base, fc.NeedsProcessingTo),
		AssetsDir:         absCleanFrom(base, assets),
	}
	if err := c.checkNesting(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// checkNesting 保证 game root、备份、输出与人工处理目录互不嵌套。
//
// 配置文件所在目录允许是它们的父目录（单向检查）：配置文件通常就放在这些目录的旁边。
func (c Config) checkNesting() error {
	type dir struct{ name, path string }
	var (
		output = dir{"outputTo", c.OutputTo}
		backup = dir{"backupTo", c.BackupTo}
		game   = dir{"gameRoot", c.GameRoot}
		manual = dir{"needsProcessingTo", c.NeedsProcessingTo}
		parent = dir{"配置文件目录", c.Dir()}
	)
	checks := []struct {
		a, b           dir
		unidirectional bool
	}{
		{output, parent, true},
		{output, backup, false},
		{output, game, false},
		{output, manual, false},
		{backup, parent, true},
		{backup, game, false},
		{backup, manual, false},
		{game, parent, true},
		{game, manual, false},
		{manual, parent, true},
	}
	for _, ck := range checks {
		nested := isWithin(ck.a.path, ck.b.path)
		if !ck.unidirectional && isWithin(ck.b.path, ck.a.path) {
			nested = true
		}
		if nested {
			return &domain.Error{
				Kind: domain.KindConfigInvalid,
				Op:   fmt.Sprintf("%s（%q）与 %s（%q）存在嵌套", ck.a.name, ck.a.path, ck.b.name, ck.b.path),
				Path: c.File,
			}
		}
	}
	return nil
}

// isWithin 判断 child 是否位于 parent 之内（相等也算）。两者都必须是绝对路径。
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func validLanguage(code string) bool {
	for _, c := range profile.LanguageCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Save 校验 fc 后把它写到 file（2 空格缩进的 JSON）。
//
// 文件已存在且未 force：KindInvalidInput。
func Save(file string, fc FileConfig, force bool) (Config, error) {
	c, err := Resolve(file, fc)
	if err != nil {
		return Config{}, err
	}

	b, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return Config{}, &domain.Error{Kind: domain.KindConfigInvalid, Op: "序列化配置", Path: c.File, Err: err}
	}
	b = append(b, '\n')

	write := fsx.WriteFileAtomicNoOverwrite
	if force {
		write = fsx.WriteFileAtomicReplace
	}
	err = write(c.Dir(), filepath.Base(c.File), b)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrExist):
		return Config{}, &domain.Error{Kind: domain.KindInvalidInput, Op: "配置文件已存在（使用 --force 覆盖）", Path: c.File}
	case fsx.IsPathTypeConflict(err):
		return Config{}, &domain.Error{Kind: domain.KindInvalidInput, Op: "配置文件路径是一个目录", Path: c.File, Err: err}
	default:
		return Config{}, &domain.Error{Kind: domain.KindFileSystem, Op: "写入配置文件", Path: c.File, Err: err}
	}
	return c, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
