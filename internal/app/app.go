// Package app wires the daemon together: logger, loopback bus, playback
// state, the media service binding, and the optional socket.io bridge and
// health check server.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/objectbus/internal/ctxlog"
	"github.com/vk/objectbus/internal/localbus"
	"github.com/vk/objectbus/internal/mediaservice"
	"github.com/vk/objectbus/internal/player"
	"github.com/vk/objectbus/internal/sockbridge"
)

// App encapsulates the daemon's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	bus     *localbus.Bus
	player  *player.Player
	service *mediaservice.Service

	quit chan struct{}
}

// New is the constructor for the daemon. It returns a fully initialized App
// instance with its own isolated logger.
func New(outW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config: cfg,
		quit:   make(chan struct{}),
	}
}

// Bus returns the application's bus. This is primarily for testing.
func (a *App) Bus() *localbus.Bus { return a.bus }

// Player returns the playback-state object. This is primarily for testing.
func (a *App) Player() *player.Player { return a.player }

// Run starts the bus, registers the media service, and serves until the
// context is cancelled or a remote caller asks the player to quit.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	a.bus = localbus.New()
	defer a.bus.Close()

	a.player = player.New()
	a.service = mediaservice.New(a.player, a.requestQuit)
	a.player.SetHooks(a.service.Hooks())
	a.seedDemoLibrary()

	if err := a.service.Start(ctx, a.bus); err != nil {
		return err
	}

	if a.config.SocketIOURL != "" {
		bridge, err := sockbridge.Start(ctx, a.bus, sockbridge.Config{
			URL:                a.config.SocketIOURL,
			Namespace:          a.config.SocketIONamespace,
			InsecureSkipVerify: a.config.InsecureSkipVerify,
		})
		if err != nil {
			return err
		}
		defer bridge.Close()
	}

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	a.logger.Info("Player daemon running.", "path", mediaservice.ObjectPath)
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down: context cancelled.")
		return nil
	case <-a.quit:
		a.logger.Info("Shutting down: quit requested over the bus.")
		return nil
	}
}

// requestQuit is handed to the media service as its Quit handler.
func (a *App) requestQuit() {
	select {
	case <-a.quit:
	default:
		close(a.quit)
	}
}

// seedDemoLibrary fills the player with a small library so remote callers
// have something to browse.
func (a *App) seedDemoLibrary() {
	tracks := []player.Track{
		{URI: "dummy:///1?track=First+Song&artist=Band+One", Title: "First Song", Artist: "Band One"},
		{URI: "dummy:///2?track=Second+Song&artist=Band+One", Title: "Second Song", Artist: "Band One"},
		{URI: "dummy:///3?track=Other+Song&artist=Band+Two", Title: "Other Song", Artist: "Band Two"},
	}
	a.player.SetTracklist(tracks)
	a.player.SetPlaylists([]player.Playlist{
		{Name: "Demo Playlist", Tracks: tracks},
	})
}
