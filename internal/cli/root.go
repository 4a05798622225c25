// Package cli implements the mdv command line: batch builds, watch mode and one-off compiles.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jwtly10/mdv"
	"github.com/jwtly10/mdv/internal/config"
	"github.com/jwtly10/mdv/internal/scriptcheck"
	"github.com/jwtly10/mdv/internal/transformer"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

type configKey struct{}

// NewRootCmd creates the mdv command and its subcommands
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "mdv",
		Short: "Compile extended markdown documents into Vue components",
		Long: `mdv compiles .v.md documents (markdown with frontmatter, containers, inline
component syntax and dynamic tables) into Vue single file components.

Compiled components are written to the cache directory, next to their metadata
JSON and the highlighted code blocks.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), cfg.Debug)
			if cfg.File != "" {
				slog.Debug("using config file", "path", cfg.File)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./mdv.yaml)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("src-root", "", "Directory containing the .v.md documents (default: src)")
	flags.String("cache-dir", "", "Directory receiving the compiled components (default: .mdv)")
	flags.Int("workers", 0, "Number of documents compiled in parallel (default: 4)")
	flags.Bool("skip-cleanup", false, "Keep cached components whose document is gone")
	flags.String("theme", "", "Chroma style used for code blocks (default: "+mdv.DefaultTheme+")")
	flags.Bool("check-script", false, "Syntax check script blocks with esbuild")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})))
}

func getConfig(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return nil, errors.New("configuration not loaded")
}

func newProcessor(cfg *config.Config) *Processor {
	compiler := mdv.NewCompiler(mdv.NewChromaHighlighter(cfg.Theme), cfg.CompileOptions())
	tr := transformer.NewTransformer(compiler, transformer.TransformOptions{
		SrcRoot:     cfg.SrcRoot,
		CacheDir:    cfg.CacheDir,
		CheckScript: cfg.CheckScript,
	})
	return NewProcessor(cfg, tr)
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Compile every document under the source root",
		Example: `  mdv build
  mdv build --src-root docs --cache-dir .cache/mdv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}

			res, err := newProcessor(cfg).Build(cmd.Context())
			if res != nil {
				report(NewReporter(cmd.OutOrStdout(), cfg.SrcRoot), cfg, res)
			}
			return err
		},
	}
}

func report(r *Reporter, cfg *config.Config, res *BuildResult) {
	for _, path := range res.Removed {
		r.Removed(relTo(cfg.CacheDir, path))
	}
	for _, out := range res.Compiled {
		r.Compiled(out.Source, relTo(cfg.CacheDir, out.Artifacts.Vue), out.Duration)
	}
	for _, f := range res.Failed {
		r.Failed(f.Path, f.Error)
	}
	r.Summary(res)
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then recompile documents as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := newProcessor(cfg)
			r := NewReporter(cmd.OutOrStdout(), cfg.SrcRoot)

			// a failing document should not prevent watching it
			res, err := p.Build(ctx)
			if res != nil {
				report(r, cfg, res)
			} else if err != nil {
				return err
			}

			w, err := NewWatcher(p, debounce)
			if err != nil {
				return err
			}
			defer w.Close()

			events := make(chan Event)
			errc := make(chan error, 1)
			go func() { errc <- w.Run(ctx, events) }()

			for ev := range events {
				switch {
				case ev.Result.Error != nil:
					r.Failed(ev.Path, ev.Result.Error)
				case len(ev.Removed) > 0:
					for _, path := range ev.Removed {
						r.Removed(relTo(cfg.CacheDir, path))
					}
				case ev.Result.Output.Skipped:
					r.Skipped(ev.Path)
				case ev.Result.Output.Artifacts.Vue != "":
					r.Compiled(ev.Path, relTo(cfg.CacheDir, ev.Result.Output.Artifacts.Vue), ev.Result.Output.Duration)
				}
			}
			return <-errc
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "Quiet period before a changed document is recompiled")
	return cmd
}

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile one document and print the component to stdout",
		Long: `Compile one document and print the component to stdout.

Nothing is written to the cache. Paths inside the component are computed as if the
document lived under the source root; documents elsewhere are treated as if their
own directory were the root.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			return compileOne(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
}

func compileOne(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	if cfg.CheckScript {
		if err := scriptcheck.Check(string(content)); err != nil {
			return err
		}
	}

	root := cfg.SrcRoot
	artifacts, err := mdv.ResolveArtifacts(root, cfg.CacheDir, abs)
	if err != nil {
		root = filepath.Dir(abs)
		if artifacts, err = mdv.ResolveArtifacts(root, cfg.CacheDir, abs); err != nil {
			return err
		}
	}
	paths, err := mdv.CompilePaths(cfg.CacheDir, artifacts)
	if err != nil {
		return err
	}

	compiler := mdv.NewCompiler(mdv.NewChromaHighlighter(cfg.Theme), cfg.CompileOptions())
	res, err := compiler.Compile(ctx, string(content), paths)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, res.Content)
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mdv %s\n", Version)
		},
	}
}
