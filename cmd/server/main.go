// Package main runs the Moonlapse server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/moonlapse"
	"github.com/opd-ai/moonlapse/config"
	"github.com/opd-ai/moonlapse/userstore"
	"github.com/sirupsen/logrus"
)

// CLIConfig holds the command-line flags.
type CLIConfig struct {
	configPath string
	logLevel   string
	help       bool
}

func parseCLIFlags(args []string) (*CLIConfig, error) {
	cli := &CLIConfig{}

	fs := flag.NewFlagSet("moonlapse-server", flag.ContinueOnError)
	fs.StringVar(&cli.configPath, "config", "moonlapse.yaml", "Path to the YAML configuration file")
	fs.StringVar(&cli.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	fs.BoolVar(&cli.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cli, nil
}

// loadConfig applies the flag overrides on top of the loaded configuration.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return nil, err
	}
	if cli.logLevel != "" {
		cfg.LogLevel = cli.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func buildOptions(cfg *config.Config, users moonlapse.UserStore) *moonlapse.Options {
	options := moonlapse.NewOptions()
	options.ListenAddr = cfg.ListenAddr()
	options.TickRate = cfg.TickRate
	options.MailboxCapacity = cfg.MailboxCapacity
	options.KeysDir = cfg.KeysDir
	options.Users = users
	return options
}

func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(cfg.Level())
}

func setupSignalHandling(server *moonlapse.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithFields(logrus.Fields{
			"function": "setupSignalHandling",
			"signal":   sig.String(),
		}).Info("Shutting down")
		server.Close()
	}()
}

func run(cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	setupLogging(cfg)

	users, err := userstore.Open(cfg.DataDir, cfg.BcryptCost)
	if err != nil {
		return err
	}
	defer users.Close()

	server, err := moonlapse.NewServer(buildOptions(cfg, users))
	if err != nil {
		return err
	}
	defer server.Close()

	if err := server.Listen(); err != nil {
		return err
	}
	setupSignalHandling(server)

	if err := server.Serve(); err != nil && !errors.Is(err, moonlapse.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	cli, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cli.help {
		fmt.Printf("Usage: %s [-config path] [-log-level level]\n", os.Args[0])
		os.Exit(0)
	}

	if err := run(cli); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("Server stopped")
		os.Exit(1)
	}
}
