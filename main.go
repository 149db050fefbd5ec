package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/Nakildias/sc0710/cmd"
	"github.com/Nakildias/sc0710/internal/api"
	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/engine"
	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/logging"
)

// eventHistorySize bounds the lifecycle event ring served at
// /api/events.
const eventHistorySize = 256

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// cli is assigned before Run invokes this callback; the root
		// command tells the loader which flags were set explicitly.
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("failed to load config", "error", loadErr)
		}

		level := opts.LoggingLevel
		if opts.Verbose {
			level = "debug"
		}
		logging.Initialize(logging.Config{
			Level:  level,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"transport": opts.LoggingTransport,
				"signal":    opts.LoggingSignal,
				"dma":       opts.LoggingDMA,
				"stream":    opts.LoggingStream,
				"engine":    opts.LoggingEngine,
				"api":       opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		runtime := config.NewRuntimeStore(config.RuntimeFromOptions(opts))
		bus := events.New()
		recorder := events.NewRecorder(bus, eventHistorySize)

		eng, err := engine.New(opts, runtime, bus)
		if err != nil {
			logger.Error("failed to bring up capture engine", "error", err)
			os.Exit(1)
		}

		server := api.NewServer(&api.Options{
			Device:   eng.Device(),
			Snapshot: eng.Monitor().Snapshot,
			Mux:      eng.Mux(),
			Runtime:  runtime,
			Monitor:  eng.Monitor(),
			Events:   recorder,
		})

		// Hot-reload of the runtime toggles from the TOML file. Only
		// file-backed values move; flags and env stay as loaded.
		watcher := config.NewWatcher(opts.Config, config.LoadFile, logger)
		watcher.OnReload(func(fresh config.Options) {
			old := runtime.Load()
			next := config.RuntimeFromOptions(&fresh)
			runtime.Store(next)
			if next.Verbose != old.Verbose {
				if next.Verbose {
					logging.SetAllLevels("debug")
				} else {
					logging.SetAllLevels(opts.LoggingLevel)
				}
			}
			logger.Info("runtime config reloaded",
				"verbose", next.Verbose,
				"status_images", next.StatusImages)
		})

		hooks.OnStart(func() {
			eng.Run()

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("config watcher unavailable, hot-reload disabled", "error", watchErr)
			}

			logger.Info("starting control api", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("failed to start control api", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("error stopping control api", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("error stopping config watcher", "error", stopErr)
			}
			eng.Shutdown()
			recorder.Close()
		})
	})

	cli.Root().Use = "sc0710"
	cli.Root().AddCommand(cmd.CreateModesCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}
