package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"tomgalvin.uk/catprint/internal/config"
	"tomgalvin.uk/catprint/internal/printer"
)

const usage = `Usage: catprint [-config file] [-env file] <command> [flags]

Commands:
  serve                      run the HTTP API
  print [flags] <image>      print an image and exit
  preview [flags] <image> <out.png>
                             write the dithered image without printing
  config [file]              write the default configuration
`

func main() {
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	cfgPath := flag.String("config", config.Path("."), "configuration file")
	envPath := flag.String("env", ".env", "file of environment variables to load")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "config" {
		if err := writeDefaultConfig(*cfgPath, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger, args)
	case "print":
		err = printCommand(ctx, cfg, logger, args)
	case "preview":
		err = previewCommand(cfg, logger, args)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		logger.Error("catprint failed", "command", cmd, "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg config.Values) *slog.Logger {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel(),
		TimeFormat: time.TimeOnly,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}))
	slog.SetDefault(logger)
	return logger
}

func writeDefaultConfig(path string, args []string) error {
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.Defaults()); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

// newTransport opens the configured radio. When the host has none the
// session is still created, but reports itself as unsupported.
func newTransport(cfg config.Values, logger *slog.Logger) (printer.Transport, error) {
	opts := cfg.DiscoveryOptions(logger.With("src", cfg.Transport))

	var t printer.Transport
	var err error
	switch cfg.Transport {
	case config.TransportHCI:
		var hci *printer.HCITransport
		if hci, err = printer.NewHCITransport(opts); err == nil {
			t = hci
		}
	default:
		var bt *printer.BluetoothTransport
		if bt, err = printer.NewBluetoothTransport(opts); err == nil {
			t = bt
		}
	}

	if errors.Is(err, printer.ErrUnsupportedTransport) {
		logger.Warn("Bluetooth is unavailable, printing is disabled", "transport", cfg.Transport, "error", err)
		return nil, nil
	}
	return t, err
}
