// Package profile 把各游戏版本的差异表达为数据：标题 ID、参考列表、覆盖文件类型、本地化规则与阶段顺序。
package profile

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/ksm/internal/domain"
)

// LanguageCodes 是配置允许的全部语言码（具体版本是否支持由 Localization 决定）。
var LanguageCodes = []string{"en", "ja", "it", "fr", "de", "es"}

// OverrideType 描述一类需要从 override 根挪进子目录的文件。
type OverrideType struct {
	Ext       string // 不带点，例如 "gui"
	SubFolder string // override/<SubFolder>/
}

// Localization 描述一个版本如何按语言码放置本地化资源。
//
// 两种策略可以同时存在：
//   - 后缀重命名（K1）：SuffixFiles 中的文件在非默认语言下改名为 <stem><code><ext>；
//     SuffixFolders 中的目录只对 VoicedLanguages 改名为 <name><code>
//   - 目录归档（K2）：MoveFolders 中的目录整体移入 <BaseFolder>/<Folders[code]>/<folder>
type Localization struct {
	DefaultLanguage string
	Supported       []string

	SuffixFiles     []string
	SuffixFolders   []string
	VoicedLanguages []string

	BaseFolder  string
	Folders     map[string]string
	MoveFolders []string
}

// Supports 报告语言码 code 是否被该版本支持。
func (l Localization) Supports(code string) bool {
	if len(l.Folders) > 0 {
		_, ok := l.Folders[code]
		return ok
	}
	for _, c := range l.Supported {
		if c == code {
			return true
		}
	}
	return false
}

// Profile 是一个游戏版本的全部静态数据。
type Profile struct {
	Edition int
	Name    string
	TitleID string

	// 相对 assets 目录的资源路径。
	FilesList        string
	RootOverrideList string
	PCFolders        string

	// KeyFileHashes：game root 下内容未被改动（sha1 一致）时应删除的关键文件。
	KeyFileHashes map[string]string

	OverrideTypes []OverrideType
	Localization  Localization

	// Stages 是 finalize 在 markFinalized 之后的阶段顺序。
	Stages []string
}

var keyFileHashes = map[string]string{
	"dialog.tlk":   "c83b5b5f5ea8941a767b6364049b2108ef576928",
	"swplayer.ini": "507105bc491dec3edf7374052b87fdabe44b0636",
}

var k1 = Profile{
	Edition:       1,
	Name:          "kotor1",
	TitleID:       "0100854015868800",
	FilesList:     "k1/switch-files.txt",
	PCFolders:     "k1/pc-folders.txt",
	KeyFileHashes: keyFileHashes,
	OverrideTypes: []OverrideType{
		{Ext: "2da", SubFolder: "2da"},
		{Ext: "dlg", SubFolder: "dlg"},
		{Ext: "gui", SubFolder: "xbox_gui"},
	},
	Localization: Localization{
		DefaultLanguage: "en",
		Supported:       LanguageCodes,
		SuffixFiles:     []string{"dialog.tlk"},
		SuffixFolders:   []string{"streamwaves"},
		VoicedLanguages: []string{"fr", "de"},
	},
	Stages: []string{
		domain.StageKeyFiles,
		domain.StageRedundant,
		domain.StageExactMatches,
		domain.StageTextures,
		domain.StageOverrideTypes,
		domain.StageLocalized,
		domain.StageCompact,
		domain.StageOutput,
	},
}

var k2 = Profile{
	Edition:          2,
	Name:             "kotor2",
	TitleID:          "0100B2C016252000",
	FilesList:        "k2/switch-files.txt",
	RootOverrideList: "k2/switch-override-files.txt",
	PCFolders:        "k2/pc-folders.txt",
	KeyFileHashes:    keyFileHashes,
	OverrideTypes: []OverrideType{
		{Ext: "2da", SubFolder: "2DA"},
	},
	Localization: Localization{
		DefaultLanguage: "en",
		BaseFolder:      "Localized",
		Folders: map[string]string{
			"en": "English",
			"fr": "French",
			"de": "German",
			"it": "Italian",
			"es": "Spanish",
			"ja": "Japanese",
		},
		MoveFolders: []string{"Docs", "StreamVoice", "lips"},
	},
	Stages: []string{
		domain.StageKeyFiles,
		domain.StageRedundant,
		domain.StageLocalized,
		domain.StageOverrideTypes,
		domain.StageTextures,
		domain.StageExactMatches,
		domain.StageCompact,
		domain.StageOutput,
	},
}

// ForEdition 返回版本号对应的 Profile（返回副本，调用方修改不影响全局数据）。
func ForEdition(edition int) (Profile, error) {
	switch edition {
	case 1:
		return k1.clone(), nil
	case 2:
		return k2.clone(), nil
	default:
		return Profile{}, &domain.Error{
			Kind: domain.KindConfigInvalid,
			Op:   fmt.Sprintf("不支持的游戏版本 %d（只支持 1 或 2）", edition),
		}
	}
}

// Editions 返回全部受支持的版本号（升序）。
func Editions() []int {
	out := []int{k1.Edition, k2.Edition}
	sort.Ints(out)
	return out
}

// AssetPath 把资源相对路径解析到 assetsDir 下；rel 为空时返回空串。
func (p Profile) AssetPath(assetsDir, rel string) string {
	if rel == "" {
		return ""
	}
	return filepath.Join(assetsDir, filepath.FromSlash(rel))
}

func (p Profile) clone() Profile {
	c := p
	c.KeyFileHashes = make(map[string]string, len(p.KeyFileHashes))
	for k, v := range p.KeyFileHashes {
		c.KeyFileHashes[k] = v
	}
	c.OverrideTypes = append([]OverrideType(nil), p.OverrideTypes...)
	c.Stages = append([]string(nil), p.Stages...)
	c.Localization.Supported = append([]string(nil), p.Localization.Supported...)
	c.Localization.SuffixFiles = append([]string(nil), p.Localization.SuffixFiles...)
	c.Localization.SuffixFolders = append([]string(nil), p.Localization.SuffixFolders...)
	c.Localization.VoicedLanguages = append([]string(nil), p.Localization.VoicedLanguages...)
	c.Localization.MoveFolders = append([]string(nil), p.Localization.MoveFolders...)
	if p.Localization.Folders != nil {
		c.Localization.Folders = make(map[string]string, len(p.Localization.Folders))
		for k, v := range p.Localization.Folders {
			c.Localization.Folders[k] = v
		}
	}
	return c
}
