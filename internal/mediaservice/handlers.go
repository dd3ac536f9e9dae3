package mediaservice

import (
	"context"
	"errors"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/catalog"
	"github.com/vk/objectbus/internal/ctxlog"
	"github.com/vk/objectbus/internal/player"
	"github.com/vk/objectbus/internal/registry"
)

var metadataType = cty.Object(map[string]cty.Type{
	"trackid": cty.String,
	"length":  cty.Number,
	"title":   cty.String,
	"artist":  cty.String,
})

// template declares every handler of the four exported interfaces. Member
// names are unique across the manifest except where noted, so most
// declarations rely on interface auto-detection.
func (s *Service) template(cat *catalog.Catalog) *registry.Template {
	p := s.player
	t := registry.NewTemplate(cat)

	// org.mpris.MediaPlayer2
	t.Method("Raise", func(ctx context.Context) {
		ctxlog.FromContext(ctx).Info("Raise requested; this player has no window.")
	})
	t.Method("Quit", func() {
		if s.onQuit != nil {
			s.onQuit()
		}
	}, registry.On(RootInterface))
	t.Getter("CanQuit", func() bool { return true })
	t.Getter("Fullscreen", func() bool { return s.fullscreen })
	t.Setter("Fullscreen", func(v bool) { s.fullscreen = v })
	t.Getter("CanRaise", func() bool { return false })
	t.Getter("HasTrackList", func() bool { return true })
	t.Getter("Identity", func() string { return "Example Media Player for objectbus" })
	t.Getter("DesktopEntry", func() string { return "" })
	t.Getter("SupportedUriSchemes", func() []string { return []string{"dummy"} })
	t.Getter("SupportedMimeTypes", func() []string {
		return []string{"audio/mpeg", "audio/ogg", "audio/vnd.wav"}
	})

	// org.mpris.MediaPlayer2.Player
	t.Method("Next", func() { p.Next() })
	t.Method("Previous", func() { p.Prev() })
	t.Method("Pause", func() { p.Pause() })
	t.Method("PlayPause", func() { p.PlayPause() })
	t.Method("Stop", func() { p.Stop() })
	t.Method("Play", func() { p.Play() })
	t.Method("Seek", func(offset int64) { p.Seek(offset) })
	t.Method("SetPosition", func(trackID string, position int64) error {
		uri, err := trackPathToURI(trackID)
		if err != nil {
			return err
		}
		if err := p.SwitchTrackByURI(uri); err != nil {
			return err
		}
		p.SetPosition(position)
		return nil
	})
	t.Method("OpenUri", func(uri string) error { return p.SwitchTrackByURI(uri) })
	t.Signal("Seeked", func(position int64) {})
	t.Getter("PlaybackStatus", func() string { return statusTitle(p.State()) })
	t.Getter("LoopStatus", func() string { return "None" })
	t.Setter("LoopStatus", func(string) {
		// we don't implement this, just pretend it worked
	})
	t.Getter("Rate", func() float64 { return 1 })
	t.Setter("Rate", func(float64) {})
	t.Getter("Shuffle", func() bool { return false })
	t.Setter("Shuffle", func(bool) {})
	t.Getter("Metadata", func() cty.Value { return metadataValue(p.CurrentTrack()) })
	t.Getter("Position", func() int64 { return p.Position() }, registry.NoNotify())
	t.Getter("MinimumRate", func() float64 { return 1 })
	t.Getter("MaximumRate", func() float64 { return 1 })
	t.Getter("CanGoNext", func() bool { return true })
	t.Getter("CanGoPrevious", func() bool { return true })
	t.Getter("CanPlay", func() bool { return true })
	t.Getter("CanPause", func() bool { return true })
	t.Getter("CanSeek", func() bool { return true })
	t.Getter("CanControl", func() bool { return true }, registry.NoNotify())

	// org.mpris.MediaPlayer2.TrackList
	t.Method("GetTracksMetadata", s.getTracksMetadata)
	t.Method("AddTrack", s.addTrack)
	t.Method("RemoveTrack", s.removeTrack)
	t.Method("GoTo", s.goTo)
	t.Signal("TrackListReplaced", func(tracks []string, currentTrack string) {})
	t.Getter("Tracks", func() []string {
		paths := make([]string, 0, len(p.Tracklist()))
		for _, track := range p.Tracklist() {
			paths = append(paths, trackURIToPath(track.URI))
		}
		return paths
	}, registry.InvalidateOnly())
	t.Getter("CanEditTracks", func() bool { return true })

	// org.mpris.MediaPlayer2.Playlists
	t.Method("ActivatePlaylist", s.activatePlaylist)
	t.Method("GetPlaylists", func(index, maxCount int64, order string, reverseOrder bool) (cty.Value, error) {
		return cty.NilVal, errors.New("not implemented")
	})
	t.Signal("PlaylistChanged", func(playlist cty.Value) {})
	t.Getter("PlaylistCount", func() int { return len(p.Playlists()) })
	t.Getter("Orderings", func() []string { return []string{"default"} })
	t.Getter("ActivePlaylist", func() cty.Value {
		return cty.ObjectVal(map[string]cty.Value{
			"valid": cty.False,
			"playlist": cty.ObjectVal(map[string]cty.Value{
				"id":   cty.StringVal("/"),
				"name": cty.StringVal(""),
				"icon": cty.StringVal(""),
			}),
		})
	})

	return t
}

func (s *Service) getTracksMetadata(ctx context.Context, trackIDs []string) (cty.Value, error) {
	if len(trackIDs) == 0 {
		return cty.ListValEmpty(metadataType), nil
	}
	metadatas := make([]cty.Value, 0, len(trackIDs))
	for _, trackPath := range trackIDs {
		uri, err := trackPathToURI(trackPath)
		if err != nil {
			return cty.NilVal, err
		}
		track, err := player.ParseTrackURI(uri)
		if err != nil {
			return cty.NilVal, err
		}
		metadatas = append(metadatas, metadataValue(&track))
	}
	return cty.ListVal(metadatas), nil
}

func (s *Service) addTrack(ctx context.Context, uri, afterTrack string, setAsCurrent bool) error {
	track, err := player.ParseTrackURI(uri)
	if err != nil {
		return err
	}

	tracks := s.player.Tracklist()
	insertPos := -1
	for i, existing := range tracks {
		if trackURIToPath(existing.URI) == afterTrack {
			insertPos = i + 1
			break
		}
	}
	if insertPos < 0 {
		ctxlog.FromContext(ctx).Warn("AddTrack could not find the anchor track, appending.", "after", afterTrack)
		insertPos = len(tracks)
	}

	updated := make([]player.Track, 0, len(tracks)+1)
	updated = append(updated, tracks[:insertPos]...)
	updated = append(updated, track)
	updated = append(updated, tracks[insertPos:]...)
	s.player.SetTracklist(updated)

	if setAsCurrent {
		return s.player.SwitchTrackByURI(uri)
	}
	return nil
}

func (s *Service) removeTrack(trackID string) error {
	tracks := s.player.Tracklist()
	for i, track := range tracks {
		if trackURIToPath(track.URI) == trackID {
			updated := make([]player.Track, 0, len(tracks)-1)
			updated = append(updated, tracks[:i]...)
			updated = append(updated, tracks[i+1:]...)
			s.player.SetTracklist(updated)
			return nil
		}
	}
	return nil
}

func (s *Service) goTo(trackID string) error {
	for _, track := range s.player.Tracklist() {
		if trackURIToPath(track.URI) == trackID {
			return s.player.SwitchTrackByURI(track.URI)
		}
	}
	return nil
}

func (s *Service) activatePlaylist(playlistID string) error {
	index, err := playlistPathToIndex(playlistID)
	if err != nil {
		return err
	}
	playlists := s.player.Playlists()
	if index >= len(playlists) {
		return nil
	}
	s.player.SetTracklist(append([]player.Track(nil), playlists[index].Tracks...))
	s.player.SwitchTrack(0)
	return nil
}

// metadataValue builds the typed metadata object for a track; a nil track
// yields the empty metadata object.
func metadataValue(t *player.Track) cty.Value {
	if t == nil {
		return cty.ObjectVal(map[string]cty.Value{
			"trackid": cty.StringVal(""),
			"length":  cty.Zero,
			"title":   cty.StringVal(""),
			"artist":  cty.StringVal(""),
		})
	}
	return cty.ObjectVal(map[string]cty.Value{
		"trackid": cty.StringVal(trackURIToPath(t.URI)),
		"length":  cty.Zero,
		"title":   cty.StringVal(t.Title),
		"artist":  cty.StringVal(t.Artist),
	})
}

// statusTitle renders the player state the way remote callers expect it:
// "Playing", "Paused", "Stopped".
func statusTitle(s player.State) string {
	if s == "" {
		return ""
	}
	str := string(s)
	return strings.ToUpper(str[:1]) + str[1:]
}
