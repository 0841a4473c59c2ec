package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newWorkspace 准备一个只含 K1 资源列表的目录，返回配置文件路径。
func newWorkspace(t *testing.T) (base, cfgFile string) {
	t.Helper()
	base = t.TempDir()
	writeFile(t, filepath.Join(base, "assets", "k1", "pc-folders.txt"), "override\nmodules\nstreamwaves\n")
	writeFile(t, filepath.Join(base, "assets", "k1", "switch-files.txt"), "override/texture.tpc\nmodules/a.mod\noverride/bar.tpc\n")
	return base, filepath.Join(base, config.DefaultFile)
}

func initWorkspace(t *testing.T, cfgFile string) {
	t.Helper()
	res := runCLI(t, "-c", cfgFile, "init", "-k", "1", "-l", "en", "-S")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.Contains(t, res.stdout, "初始化完成")
}

func TestCLI_InitFinalizeRestore(t *testing.T) {
	base, cfgFile := newWorkspace(t)
	initWorkspace(t, cfgFile)

	gameRoot := filepath.Join(base, "game-root")
	require.DirExists(t, filepath.Join(gameRoot, "override"))
	require.DirExists(t, filepath.Join(gameRoot, "modules"))

	writeFile(t, filepath.Join(gameRoot, "texture.tpc"), "tpc")
	writeFile(t, filepath.Join(gameRoot, "a.mod"), "mod")

	res := runCLI(t, "-c", cfgFile, "finalize")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.Contains(t, res.stdout, "完成：moved=")
	require.NotContains(t, res.stdout, "需要人工处理")

	romfs := filepath.Join(base, "output", "0100854015868800", "romfs")
	require.FileExists(t, filepath.Join(romfs, "override", "textures", "texture.tpc"))
	require.FileExists(t, filepath.Join(romfs, "modules", "a.mod"))
	require.NoDirExists(t, gameRoot)

	b, err := os.ReadFile(filepath.Join(base, config.ReportFile))
	require.NoError(t, err)
	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(b, &rr))
	require.Equal(t, romfs, rr.Output)
	require.False(t, rr.Warned)

	res = runCLI(t, "-c", cfgFile, "finalize", "--restore-backup")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.FileExists(t, filepath.Join(gameRoot, "texture.tpc"))
	require.FileExists(t, filepath.Join(gameRoot, "a.mod"))
	require.NoFileExists(t, filepath.Join(gameRoot, ".finalized"))
	require.NoDirExists(t, romfs)
}

func TestCLI_NeedsProcessingWarning(t *testing.T) {
	base, cfgFile := newWorkspace(t)
	initWorkspace(t, cfgFile)
	writeFile(t, filepath.Join(base, "game-root", "override", "bar.tga"), "bar")

	res := runCLI(t, "-c", cfgFile, "finalize", "--no-backup")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.Contains(t, res.stdout, "需要人工处理")
	require.Contains(t, res.stdout, "override/bar.tga")
	require.Contains(t, res.stdout, "完成（有警告）")
	require.FileExists(t, filepath.Join(base, "_NEEDS_PROCESSING", "bar.tga"))
	require.NoDirExists(t, filepath.Join(base, "backup"))
}

func TestCLI_ConfigFromEnv(t *testing.T) {
	base, cfgFile := newWorkspace(t)
	initWorkspace(t, cfgFile)
	t.Setenv(config.EnvFile, cfgFile)

	res := runCLI(t, "finalize", "--no-backup")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.DirExists(t, filepath.Join(base, "output", "0100854015868800", "romfs"))
}

func TestCLI_ExitCodes(t *testing.T) {
	base, cfgFile := newWorkspace(t)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"missing config", []string{"-c", cfgFile, "finalize"}, domain.ExitConfigMissing},
		{"conflicting flags", []string{"-c", cfgFile, "finalize", "--no-backup", "--force-backup"}, domain.ExitInvalidInput},
		{"restore with no-backup", []string{"-c", cfgFile, "finalize", "-r", "-n"}, domain.ExitInvalidInput},
		{"init without edition", []string{"-c", cfgFile, "init", "-S"}, domain.ExitInvalidInput},
		{"init bad edition", []string{"-c", cfgFile, "init", "-k", "3", "-S"}, domain.ExitInvalidInput},
		{"unsupported language", []string{"-c", cfgFile, "init", "-k", "1", "-l", "pt", "-S"}, domain.ExitUnsupportedLanguage},
		{"unknown command", []string{"nope"}, domain.ExitInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := runCLI(t, tc.args...)
			require.Equal(t, tc.want, res.code, "stdout=%s stderr=%s", res.stdout, res.stderr)
		})
	}
	require.NoFileExists(t, cfgFile)
	require.NoDirExists(t, filepath.Join(base, "game-root"))
}

func TestCLI_InitTwiceNeedsForce(t *testing.T) {
	base, cfgFile := newWorkspace(t)
	initWorkspace(t, cfgFile)

	// 模板目录让 game root 非空。
	res := runCLI(t, "-c", cfgFile, "init", "-k", "1", "-S")
	require.Equal(t, domain.ExitFileSystem, res.code)
	require.True(t, strings.Contains(res.stderr, "错误："), res.stderr)

	require.NoError(t, os.RemoveAll(filepath.Join(base, "game-root")))
	res = runCLI(t, "-c", cfgFile, "init", "-k", "1", "-S")
	require.Equal(t, domain.ExitInvalidInput, res.code)

	res = runCLI(t, "-c", cfgFile, "init", "-k", "1", "-S", "--force")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
}

func TestCLI_RestoreWithoutBackup(t *testing.T) {
	_, cfgFile := newWorkspace(t)
	initWorkspace(t, cfgFile)

	res := runCLI(t, "-c", cfgFile, "finalize", "--restore-backup")
	require.Equal(t, domain.ExitFileSystem, res.code)
}

func TestCLI_InitExplicitSymlink(t *testing.T) {
	base, cfgFile := newWorkspace(t)
	link := filepath.Join(base, "links", "mylink")
	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0o755))

	res := runCLI(t, "-c", cfgFile, "init", "-k", "1", "-s", link)
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.Contains(t, res.stdout, "符号链接："+link)

	target, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "game-root"), target)
}

func TestCLI_InitExplicitSymlinkDirMissing(t *testing.T) {
	base, cfgFile := newWorkspace(t)
	link := filepath.Join(base, "no-such-dir", "mylink")

	res := runCLI(t, "-c", cfgFile, "init", "-k", "1", "-s", link)
	require.Equal(t, domain.ExitFileSystem, res.code, "stdout=%s stderr=%s", res.stdout, res.stderr)
	require.Contains(t, res.stderr, "mylink")

	_, err := os.Lstat(link)
	require.True(t, os.IsNotExist(err), "err=%v", err)
}

func TestCLI_InitDefaultSymlinkSkippedWithoutDesktop(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	_, cfgFile := newWorkspace(t)

	res := runCLI(t, "-c", cfgFile, "init", "-k", "1")
	require.Equal(t, domain.ExitOK, res.code, "stderr=%s", res.stderr)
	require.Contains(t, res.stdout, "初始化完成（有警告")
	require.Contains(t, res.stderr, "桌面目录不存在")
	require.NoDirExists(t, filepath.Join(home, "Desktop"))
}
