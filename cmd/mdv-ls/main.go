package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwtly10/mdv/internal/config"
	iLsp "github.com/jwtly10/mdv/internal/lsp"
	"github.com/jwtly10/mdv/internal/lsp/server"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/pflag"
)

type stdRWC struct{}

func (stdRWC) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdRWC) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdRWC) Close() error                { return nil }

// getLogFile returns a log file for the lsp server to write to.
//
// During development (--debug flag) uses persistent log for easy access.
func getLogFile(debug bool) (*os.File, error) {
	if debug {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir := filepath.Join(homeDir, ".mdv")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		return os.OpenFile(filepath.Join(logDir, "mdv-ls.log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}

	return os.CreateTemp("", "mdv-ls-*.log")
}

func main() {
	flags := pflag.NewFlagSet("mdv-ls", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "config file (default: ./mdv.yaml)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("src-root", "", "Directory containing the .v.md documents")
	flags.String("cache-dir", "", "Directory receiving the compiled components")
	flags.Bool("check-script", false, "Syntax check script blocks with esbuild")
	writeOnSave := flags.Bool("write-on-save", false, "Write the compiled component when a document is saved")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgFile, flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logFile, err := getLogFile(cfg.Debug)
	if err != nil {
		slog.Error("failed to setup logging", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// stdout carries the protocol, logs go to stderr and the log file
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})))

	slog.Info("starting mdv-ls", "logfile", logFile.Name(), "config", cfg.Pretty())

	s, err := server.NewServer(server.Options{
		Theme:   cfg.Theme,
		Compile: cfg.CompileOptions(),
		DocService: iLsp.DocumentServiceOptions{
			SrcRoot:     cfg.SrcRoot,
			CacheDir:    cfg.CacheDir,
			CheckScript: cfg.CheckScript,
			WriteOnSave: *writeOnSave,
		},
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	<-jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(stdRWC{}, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.Handle),
	).DisconnectNotify()
}
