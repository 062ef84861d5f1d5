// Command vecfeed streams preprocessed embedding datasets to a batch writer.
//
//	vecfeed serve                                  run the HTTP API
//	vecfeed ingest --domain recruit --file x.csv   run one ingestion and exit
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/config"
	logpkg "github.com/kailas-cloud/vecfeed/internal/logger"
	"github.com/kailas-cloud/vecfeed/internal/version"
)

// GlobalFlags are accepted before the command name.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

func main() {
	global := flag.NewFlagSet("vecfeed", flag.ContinueOnError)
	global.SetInterspersed(false)
	var g GlobalFlags
	global.StringVarP(&g.ConfigPath, "config", "c", "", "Config file (default: config/$ENV.yaml)")
	global.StringVar(&g.LogLevel, "log-level", "", "Override logging.level: debug, info, warn, error")
	showVersion := global.Bool("version", false, "Print version and exit")
	global.Usage = usage(global)

	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	var run func(args []string, cfg config.Config, logger *zap.Logger) error
	switch args[0] {
	case "serve":
		run = runServe
	case "ingest":
		run = runIngest
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		global.Usage()
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg, err := loadConfig(g.ConfigPath, env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	level := cfg.Logging.Level
	if g.LogLevel != "" {
		level = g.LogLevel
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(args[1:], cfg, logger.With(zap.String("env", env))); err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path, env string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(env)
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, `Usage: vecfeed [global options] <command> [options]

Commands:
  serve    Run the HTTP ingestion API
  ingest   Run one ingestion from the command line

Global options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun 'vecfeed <command> --help' for command options.\n")
	}
}
