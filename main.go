package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"hlsfrag/config"
	"hlsfrag/logger"
	"hlsfrag/session"
	"hlsfrag/util"
	"hlsfrag/util/networking"

	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitConfigError  = 3
	ExitFetchError   = 4
)

func main() {
	logger.Init()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	defer logger.Sync()

	fs := flag.NewFlagSet("hlsfrag", flag.ContinueOnError)
	output := fs.String("o", "-", "output file, - for stdout")
	sessionPath := fs.String("session", "", "session YAML file (default $SESSION_CONFIG)")
	concurrency := fs.Int("c", 0, "fragments fetched in parallel (default $CONCURRENCY)")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: hlsfrag [options] <playlist-url>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return ExitInvalidArgs
	}
	playlistURL := fs.Arg(0)

	// load environment variables and configurations
	if err := config.Load(); err != nil {
		zap.S().Errorf("invalid configuration: %v", err)
		return ExitConfigError
	}
	logger.SetLevel(config.Env.LogLevel)
	if *verbose {
		logger.SetLevel("debug")
	}
	if *sessionPath == "" {
		*sessionPath = config.Env.SessionConfig
	}
	if *concurrency <= 0 {
		*concurrency = config.Env.Concurrency
	}

	sessionConfig, err := config.LoadSessionConfig(*sessionPath)
	if err != nil {
		zap.S().Errorf("failed to load session: %v", err)
		return ExitConfigError
	}

	s, err := session.New(session.Options{
		Download: config.DownloadConfig(),
		Session:  sessionConfig,
		Network: networking.ClientOptions{
			Proxy: networking.ProxyConfig{
				HTTPProxy:  config.Env.HTTPProxy,
				HTTPSProxy: config.Env.HTTPSProxy,
				NoProxy:    config.Env.NoProxy,
			},
			EdgeProxyURL: config.Env.EdgeProxyURL,
			HTTP3:        config.Env.HTTP3,
			Timeout:      config.Env.Timeout,
		},
		CacheDriver: config.Env.CacheDriver,
		CacheDSN:    config.Env.CacheDSN,
		CacheMaxAge: config.Env.CacheMaxAge,
	})
	if err != nil {
		zap.S().Errorf("failed to start session: %v", err)
		return ExitConfigError
	}
	defer s.Close()

	var (
		out  io.Writer = os.Stdout
		part *util.PartFile
	)
	if *output != "-" {
		part, err = util.CreatePartFile(*output)
		if err != nil {
			zap.S().Errorf("failed to create output: %v", err)
			return ExitGeneralError
		}
		out = part
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	written, err := downloadPlaylist(ctx, s, playlistURL, out, *concurrency)
	if err != nil {
		if part != nil {
			part.Discard()
		}
		zap.S().Errorf("download failed: %v", err)
		return ExitFetchError
	}
	if part != nil {
		if err := part.Commit(); err != nil {
			zap.S().Errorf("%v", err)
			return ExitGeneralError
		}
	}
	zap.S().Infof("wrote %s", written)
	return ExitSuccess
}
