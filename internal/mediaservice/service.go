// Package mediaservice exposes the demo player on the bus as an MPRIS-style
// media player object. It is the repository's exercise of the whole binding
// pipeline: an embedded interface manifest, a handler template covering four
// interfaces, and change notifications driven by the player's hooks.
package mediaservice

import (
	"context"
	_ "embed"

	"github.com/vk/objectbus/internal/catalog"
	"github.com/vk/objectbus/internal/ctxlog"
	"github.com/vk/objectbus/internal/dispatch"
	"github.com/vk/objectbus/internal/player"
	"github.com/vk/objectbus/internal/transport"
)

//go:embed manifest.hcl
var manifestHCL string

// Interface and path constants of the exported object.
const (
	RootInterface      = "org.mpris.MediaPlayer2"
	PlayerInterface    = "org.mpris.MediaPlayer2.Player"
	TrackListInterface = "org.mpris.MediaPlayer2.TrackList"
	PlaylistsInterface = "org.mpris.MediaPlayer2.Playlists"

	ObjectPath = "/org/mpris/MediaPlayer2"
)

// Manifest returns the embedded interface manifest text.
func Manifest() string { return manifestHCL }

// Service is the bus-facing wrapper around a player.
type Service struct {
	player *player.Player
	onQuit func()

	obj *dispatch.Object
	ctx context.Context

	fullscreen bool
}

// New creates the service for a player. onQuit is invoked when a remote
// caller asks the player to quit; it may be nil.
func New(p *player.Player, onQuit func()) *Service {
	return &Service{player: p, onQuit: onQuit}
}

// Hooks returns the player hooks that keep remote observers in sync: bulk
// property-changed notifications for state, track, tracklist, and playlist
// changes, and the Seeked signal for position jumps. The hooks are inert
// until Start has registered the object.
func (s *Service) Hooks() player.Hooks {
	return player.Hooks{
		StateChanged:        func() { s.changed(PlayerInterface, "PlaybackStatus") },
		CurrentTrackChanged: func() { s.changed(PlayerInterface, "Metadata") },
		TracklistChanged:    func() { s.changed(TrackListInterface, "Tracks") },
		PlaylistsChanged:    func() { s.changed(PlaylistsInterface, "PlaylistCount", "ActivePlaylist") },
		Seeked: func(position int64) {
			if s.obj == nil {
				return
			}
			if err := s.obj.Emit(s.ctx, PlayerInterface, "Seeked", position); err != nil {
				ctxlog.FromContext(s.ctx).Warn("Failed to emit Seeked.", "error", err)
			}
		},
	}
}

// Start parses the embedded manifest, compiles the handler binding, and
// registers the object on the connection. It must be called once.
func (s *Service) Start(ctx context.Context, conn transport.Connection) error {
	cat, err := catalog.Parse(manifestHCL)
	if err != nil {
		return err
	}
	binding, err := s.template(cat).Bind()
	if err != nil {
		return err
	}
	obj, err := dispatch.Register(ctx, conn, ObjectPath, binding)
	if err != nil {
		return err
	}
	s.obj = obj
	s.ctx = ctx
	ctxlog.FromContext(ctx).Info("Media service started.", "path", ObjectPath)
	return nil
}

// changed announces a bulk property change once the object is registered.
func (s *Service) changed(iface string, names ...string) {
	if s.obj == nil {
		return
	}
	if err := s.obj.PropertiesChanged(s.ctx, iface, names...); err != nil {
		ctxlog.FromContext(s.ctx).Warn("Failed to emit PropertiesChanged.", "interface", iface, "error", err)
	}
}
