package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dooshek/polyvoice/internal/config"
	"github.com/dooshek/polyvoice/internal/fileops"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/state"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, st *state.AppState, args []string) error
}

var commands = []command{
	{"serve", "Run the HTTP API", runServe},
	{"generate", "Generate speech for a text, optionally cloning a reference voice", runGenerate},
	{"translate", "Transcribe, translate and speak a recording", runTranslate},
	{"tts", "Generate speech chunk by chunk", runTTS},
	{"record", "Record from the default microphone to a WAV file", runRecord},
	{"encode-wav", "Convert any audio file to canonical 16-bit PCM WAV", runEncodeWAV},
}

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s: [flags] <command> [command flags]\n\nCommands:\n", os.Args[0])
		for _, c := range commands {
			fmt.Fprintf(out, "  %-12s %s\n", c.name, c.usage)
		}
		fmt.Fprintf(out, "\nFlags:\n")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	runWizard := flag.Bool("wizard", false, "Run the configuration wizard")
	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	flag.Parse()

	// Set up logging level and output
	logger.SetLevel(*logLevel)
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		logger.Error("Failed to initialize file operations", err)
		os.Exit(1)
	}

	if *runWizard {
		if err := config.RunWizard(fileOps, os.Stdin, os.Stdout); err != nil {
			logger.Error("Error running wizard", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(fileOps)
	if err != nil {
		logger.Error("Error loading config", err)
		os.Exit(1)
	}
	if cfg.Keys.SarvamKey == "" {
		logger.Warn("No Sarvam API key configured. Run with --wizard or set SARVAM_API_KEY; requests must then send api-subscription-key")
	}

	st := state.New(cfg, fileOps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, st, args); err != nil {
			logger.Error(fmt.Sprintf("Command %s failed", name), err)
			stop()
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	flag.Usage()
	os.Exit(2)
}
