package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/ksm/internal/app/finalize"
	"github.com/John-Robertt/ksm/internal/app/initialize"
	"github.com/John-Robertt/ksm/internal/config"
	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/logx"
	"github.com/John-Robertt/ksm/internal/profile"
)

func main() {
	// .env 只是便利：不存在时静默忽略。
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 运行 CLI 并返回进程退出码；退出码只在这里映射一次。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return domain.ExitOK
	}

	var de *domain.Error
	if errors.As(err, &de) {
		fmt.Fprintf(stderr, "错误：%v\n", de)
		return domain.ExitCode(de)
	}
	// cobra 自身的参数错误（未知参数、互斥标志等）。
	fmt.Fprintf(stderr, "参数错误：%v\n\n使用 \"ksm --help\" 查看用法。\n", err)
	return domain.ExitInvalidInput
}

type globalFlags struct {
	configFile string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "ksm",
		Short:         "把 PC 版游戏目录重整为主机移植版期望的目录结构",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&g.configFile, "config-file", "c", defaultConfigFile(),
		"配置文件路径（也可用环境变量 "+config.EnvFile+"）")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "输出 debug 日志")

	root.AddCommand(newInitCmd(g, stdout, stderr))
	root.AddCommand(newFinalizeCmd(g, stdout, stderr))
	return root
}

func defaultConfigFile() string {
	if v := strings.TrimSpace(os.Getenv(config.EnvFile)); v != "" {
		return v
	}
	return config.DefaultFile
}

func newLogger(stderr io.Writer, g *globalFlags) zerolog.Logger {
	return logx.New(stderr, g.verbose)
}

type initFlags struct {
	edition           int
	languageCode      string
	gameRoot          string
	backupTo          string
	outputTo          string
	needsProcessingTo string
	assetsDir         string
	noDesktopSymlink  bool
	desktopSymlink    string
	force             bool
}

func newInitCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	f := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "保存配置并创建空的 game root（按版本模板建目录）",
		Long: "保存配置并创建空的 game root（按版本模板建目录）。\n" +
			"目录参数的相对路径以配置文件所在目录为基准。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), g, f, stdout, stderr)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&f.edition, "kotor", "k", 0, "游戏版本：1 或 2")
	fl.StringVarP(&f.languageCode, "language-code", "l", "en", "语言码："+strings.Join(profile.LanguageCodes, "|"))
	fl.StringVarP(&f.gameRoot, "game-root", "g", "game-root", "game root 目录（必须为空）")
	fl.StringVarP(&f.backupTo, "backup-to", "b", "backup", "finalize 前的备份目录")
	fl.StringVarP(&f.outputTo, "output-to", "o", "output", "finalize 的输出目录")
	fl.StringVarP(&f.needsProcessingTo, "needs-processing-to", "m", "_NEEDS_PROCESSING", "需要人工转换的贴图放置目录")
	fl.StringVar(&f.assetsDir, "assets-dir", "", "参考列表所在目录（默认：配置文件同目录下的 assets）")
	fl.BoolVarP(&f.noDesktopSymlink, "no-desktop-symlink", "S", false, "不在桌面创建指向 game root 的符号链接")
	fl.StringVarP(&f.desktopSymlink, "desktop-symlink-name", "s", "", "桌面符号链接名（默认 kotor<版本>）")
	fl.BoolVarP(&f.force, "force", "f", false, "覆盖已存在的配置文件，并清空非空的 game root")
	_ = cmd.MarkFlagRequired("kotor")
	cmd.MarkFlagsMutuallyExclusive("no-desktop-symlink", "desktop-symlink-name")
	return cmd
}

func runInit(ctx context.Context, g *globalFlags, f *initFlags, stdout, stderr io.Writer) error {
	log := newLogger(stderr, g)

	fc := config.FileConfig{
		Edition:           config.Edition(f.edition),
		LanguageCode:      f.languageCode,
		GameRoot:          f.gameRoot,
		BackupTo:          f.backupTo,
		OutputTo:          f.outputTo,
		NeedsProcessingTo: f.needsProcessingTo,
		AssetsDir:         f.assetsDir,
	}

	opt := initialize.Options{Force: f.force}
	skipped := false
	switch {
	case f.noDesktopSymlink:
	case f.desktopSymlink != "":
		// 显式给出的链接名走正常流程：创建失败就是错误。
		link, err := initialize.DesktopSymlinkPath(f.desktopSymlink)
		if err != nil {
			return &domain.Error{Kind: domain.KindFileSystem, Op: "解析符号链接路径", Path: f.desktopSymlink, Err: err}
		}
		opt.DesktopSymlink = link
	default:
		link, err := initialize.DesktopSymlinkPath(initialize.DefaultSymlinkName(f.edition))
		if err != nil {
			log.Warn().Err(err).Msg("无法确定桌面路径，跳过符号链接")
			skipped = true
		} else if _, err := os.Stat(filepath.Dir(link)); err != nil {
			log.Warn().Str("dir", filepath.Dir(link)).Msg("桌面目录不存在，跳过符号链接")
			skipped = true
		} else {
			opt.DesktopSymlink = link
		}
	}

	res, err := initialize.Run(ctx, g.configFile, fc, opt, log)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "配置：%s\n", res.Config.File)
	fmt.Fprintf(stdout, "game root：%s（模板目录 %s 个）\n", res.Config.GameRoot, humanize.Comma(int64(res.TemplateFolders)))
	if res.Symlink != "" {
		fmt.Fprintf(stdout, "符号链接：%s\n", res.Symlink)
	}
	if res.Warned() || skipped {
		fmt.Fprintln(stdout, "初始化完成（有警告，见上方日志）。")
		return nil
	}
	fmt.Fprintln(stdout, "初始化完成。")
	return nil
}

type finalizeFlags struct {
	force         bool
	noBackup      bool
	forceBackup   bool
	restoreBackup bool
}

func newFinalizeCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	f := &finalizeFlags{}

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "把 game root 重整为主机移植版期望的目录结构（默认先备份）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.restoreBackup {
				return runRestore(cmd.Context(), g, stdout, stderr)
			}
			return runFinalize(cmd.Context(), g, f, stdout, stderr)
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&f.force, "force", "f", false, "即使 game root 已经 finalize 过也强制执行")
	_ = fl.MarkHidden("force")
	fl.BoolVarP(&f.noBackup, "no-backup", "n", false, "finalize 前不备份 game root")
	fl.BoolVar(&f.forceBackup, "force-backup", false, "备份目录非空时先清空再备份")
	fl.BoolVarP(&f.restoreBackup, "restore-backup", "r", false, "删除已 finalize 的 game root 并从备份恢复")
	cmd.MarkFlagsMutuallyExclusive("no-backup", "force-backup")
	cmd.MarkFlagsMutuallyExclusive("restore-backup", "no-backup")
	cmd.MarkFlagsMutuallyExclusive("restore-backup", "force-backup")
	cmd.MarkFlagsMutuallyExclusive("restore-backup", "force")
	return cmd
}

func loadConfig(g *globalFlags) (config.Config, profile.Profile, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return config.Config{}, profile.Profile{}, err
	}
	p, err := profile.ForEdition(cfg.Edition)
	if err != nil {
		return config.Config{}, profile.Profile{}, err
	}
	return cfg, p, nil
}

func runFinalize(ctx context.Context, g *globalFlags, f *finalizeFlags, stdout, stderr io.Writer) error {
	log := newLogger(stderr, g)

	cfg, p, err := loadConfig(g)
	if err != nil {
		return err
	}

	var obs finalize.Observer
	if progressW, interactive := pickProgressWriter(stderr); interactive {
		obs = newProgressUI(progressW)
	}

	rr, err := finalize.Execute(ctx, cfg, p, finalize.Options{
		Force:       f.force,
		NoBackup:    f.noBackup,
		ForceBackup: f.forceBackup,
	}, log, obs)
	if err != nil {
		return err
	}

	emitSummary(stdout, cfg, rr)
	return nil
}

func runRestore(ctx context.Context, g *globalFlags, stdout, stderr io.Writer) error {
	log := newLogger(stderr, g)

	cfg, p, err := loadConfig(g)
	if err != nil {
		return err
	}
	if err := finalize.Restore(ctx, cfg, p.TitleID, log); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "已从 %s 恢复 game root：%s\n", cfg.BackupTo, cfg.GameRoot)
	return nil
}

func emitSummary(w io.Writer, cfg config.Config, rr domain.RunReport) {
	if len(rr.NeedsProcessing) > 0 {
		emitNeedsProcessing(w, cfg, rr.NeedsProcessing)
	}

	status := "完成"
	if rr.Warned {
		status = "完成（有警告）"
	}
	fmt.Fprintf(w, "%s：moved=%s skipped=%s removed=%s needs_processing=%s (%s)\n",
		status,
		humanize.Comma(int64(rr.Summary.Moved)),
		humanize.Comma(int64(rr.Summary.Skipped)),
		humanize.Comma(int64(rr.Summary.Removed)),
		humanize.Comma(int64(rr.Summary.NeedsProcessing)),
		formatShortDuration(rr.FinishedAt.Sub(rr.StartedAt)),
	)
	if rr.Output != "" {
		fmt.Fprintf(w, "输出：%s\n", rr.Output)
	}
	fmt.Fprintf(w, "报告：%s\n", cfg.ReportPath())
}

// emitNeedsProcessing 打印需要人工处理的贴图清单与修复步骤。
func emitNeedsProcessing(w io.Writer, cfg config.Config, paths []string) {
	const width = 72
	// 标题按终端显示宽度居中（中文字符占两列）。
	fmt.Fprintf(w, "%s 需要人工处理 %s\n", strings.Repeat("=", 28), strings.Repeat("=", 30))
	fmt.Fprintf(w, "以下贴图已被移到 %q：游戏加载贴图时 .tpc 优先于其它格式，\n", cfg.NeedsProcessingTo)
	fmt.Fprintln(w, "而主机版的 override 中已有同名 .tpc，所以这些文件永远不会生效：")
	fmt.Fprintln(w)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "解决方法：")
	fmt.Fprintf(w, "1. 把 %q 中的文件手动转换为 .tpc 格式（例如使用 tga2tpc）。\n", cfg.NeedsProcessingTo)
	fmt.Fprintln(w, "2. 恢复 finalize 之前的目录：ksm finalize --restore-backup")
	fmt.Fprintf(w, "3. 把转换后的文件放回 %q。\n", filepath.Join(cfg.GameRoot, "override"))
	fmt.Fprintln(w, "4. 重新运行 ksm finalize。")
	fmt.Fprintln(w, strings.Repeat("=", width))
}

func pickProgressWriter(stderr io.Writer) (io.Writer, bool) {
	// 进度只在交互终端启用，且只写 stderr（stdout 留给摘要）。
	if logx.IsTerminal(stderr) {
		return stderr, true
	}
	return nil, false
}
