package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"airwave/config"
	"airwave/logging"
	"airwave/model"
	"airwave/player"
	"airwave/tui"
)

func main() {
	volumePercent := flag.Int("volume", -1, "Initial volume (0-100), -1 means use saved config")
	logLevel := flag.String("log-level", "", "Log level override (trace, debug, info, warn, error)")
	flag.Parse()

	if *logLevel != "" {
		os.Setenv("AIRWAVE_LOG_LEVEL", *logLevel)
	}
	logging.Configure(logging.Config{})
	log := logging.WithComponent("main")

	store, err := config.NewStore()
	if err != nil {
		fmt.Printf("⚠ Failed to load settings, using defaults: %v\n", err)
	}

	library := model.NewLibrary(model.FeaturedStations)

	handle := player.NewHandle()
	if store != nil {
		handle.SetVolume(store.VolumePreference())
	}
	if *volumePercent >= 0 {
		handle.SetVolume(float64(*volumePercent) / 100.0)
	}

	loader := player.NewLoader(handle)
	controller := player.NewController(handle, loader, library, store)
	defer controller.Close()

	controller.SetStations(library.Stations())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stream health: stalls, buffer starvation, network drops. The
	// monitor shares the coordinator's network prober instead of
	// running its own.
	monitorNet := make(chan player.Signal, 8)
	monitor := player.NewMonitor(handle, controller, player.WithNetworkSignals(monitorNet))
	go monitor.Run(ctx)

	// Interruption signals from the network prober, terminal job
	// control and the UI's focus reports all reduce through one
	// coordinator.
	signals := make(chan player.Signal, 8)
	coordinator := player.NewCoordinator(handle, controller, store, library)
	go coordinator.Run(ctx, signals)
	go player.RunLifecycleSignals(ctx, signals)
	go player.RunNetworkSignals(ctx, nil, 0, signals, monitorNet)

	// OS media controls; terminal keys still work without a bus.
	backend, err := player.NewMPRISBackend(controller)
	if err != nil {
		log.Debug().Err(err).Msg("media controls unavailable, running headless")
		backend = nil
	}
	surface := player.NewSurface(controller, backend)
	go surface.Run(ctx)

	forward := func(sig player.Signal) {
		select {
		case signals <- sig:
		default:
		}
	}

	if err := tui.Run(controller, library, forward); err != nil {
		fmt.Printf("❌ Interface error: %v\n", err)
		os.Exit(1)
	}
}
