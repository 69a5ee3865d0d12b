package main

import (
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/nettle-irc/nettle/internal/config"
	"github.com/nettle-irc/nettle/internal/events"
	"github.com/nettle-irc/nettle/internal/logger"
	"github.com/nettle-irc/nettle/internal/notify"
)

func main() {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.BoolVar(&debug, "debug", false, "log the raw protocol traffic")
	flag.Parse()

	if configPath == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Cannot locate user config directory")
		}
		configPath = path.Join(configDir, "nettle", "nettle.scfg")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", configPath).Msg("Cannot load configuration")
	}
	logger.SetDebug(debug || cfg.Debug)

	bus := events.NewEventBus()
	notifier := notify.New(bus)
	defer notifier.Close()

	app := NewApp(cfg, bus, nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Log.Info().Str("signal", sig.String()).Msg("Shutting down")
		app.Stop()
	}()

	app.Run()
}
