// Package player holds the playback state of the demo media player: the
// current track, the tracklist, playlists, and the playing/paused/stopped
// state machine. It knows nothing about the bus; interested parties observe
// changes through Hooks.
//
// A Player is not safe for concurrent use. In the daemon it is touched only
// from the bus dispatch goroutine, which serializes all access.
package player

import (
	"fmt"
	"net/url"
)

// State is the playback state.
type State string

const (
	Stopped State = "stopped"
	Playing State = "playing"
	Paused  State = "paused"
)

// Track is one playable item. Artist and Title are empty when the track URI
// did not carry them.
type Track struct {
	URI    string
	Artist string
	Title  string
}

// Playlist is a named list of tracks.
type Playlist struct {
	Name   string
	Tracks []Track
}

// Hooks are the change callbacks a Player fires. Nil hooks are skipped.
type Hooks struct {
	StateChanged        func()
	CurrentTrackChanged func()
	TracklistChanged    func()
	PlaylistsChanged    func()
	Seeked              func(position int64)
}

// Player is the playback-state object.
type Player struct {
	hooks Hooks

	state     State
	current   *Track
	tracklist []Track
	playlists []Playlist
	position  int64
}

// New creates a stopped player with an empty tracklist.
func New() *Player {
	return &Player{state: Stopped}
}

// SetHooks installs the change callbacks. It is called once during wiring,
// before the player is exposed to any caller.
func (p *Player) SetHooks(hooks Hooks) {
	p.hooks = hooks
}

// State returns the current playback state.
func (p *Player) State() State { return p.state }

func (p *Player) setState(s State) {
	if p.state == s {
		return
	}
	p.state = s
	fire(p.hooks.StateChanged)
}

// Play starts playback.
func (p *Player) Play() { p.setState(Playing) }

// Pause pauses playback.
func (p *Player) Pause() { p.setState(Paused) }

// Stop stops playback.
func (p *Player) Stop() { p.setState(Stopped) }

// PlayPause toggles between playing and paused; from stopped it starts
// playing.
func (p *Player) PlayPause() {
	if p.state == Playing {
		p.setState(Paused)
	} else {
		p.setState(Playing)
	}
}

// CurrentTrack returns the current track, or nil when nothing is selected.
func (p *Player) CurrentTrack() *Track { return p.current }

// Tracklist returns the tracklist.
func (p *Player) Tracklist() []Track { return p.tracklist }

// SetTracklist replaces the tracklist.
func (p *Player) SetTracklist(tracks []Track) {
	p.tracklist = tracks
	fire(p.hooks.TracklistChanged)
}

// Playlists returns the playlists.
func (p *Player) Playlists() []Playlist { return p.playlists }

// SetPlaylists replaces the playlists.
func (p *Player) SetPlaylists(playlists []Playlist) {
	p.playlists = playlists
	fire(p.hooks.PlaylistsChanged)
}

// Next advances to the track after the current one. Past the end of the
// tracklist it does nothing.
func (p *Player) Next() {
	idx, found := p.currentIndex()
	if !found {
		idx = -1
	}
	p.SwitchTrack(idx + 1)
}

// Prev goes back to the track before the current one. With no current track
// it selects the first one; from the first track it wraps to the last.
func (p *Player) Prev() {
	idx, found := p.currentIndex()
	if !found {
		idx = 1
	}
	p.SwitchTrack(idx - 1)
}

// SwitchTrack makes the tracklist entry at index the current track. A
// negative index counts back from the end of the tracklist, so -1 is the
// last track; indices out of range in either direction are ignored.
func (p *Player) SwitchTrack(index int) {
	if index < 0 {
		index += len(p.tracklist)
	}
	if index < 0 || index >= len(p.tracklist) {
		return
	}
	track := p.tracklist[index]
	p.current = &track
	fire(p.hooks.CurrentTrackChanged)
}

// SwitchTrackByURI makes the track described by uri the current track, even
// if it is not on the tracklist.
func (p *Player) SwitchTrackByURI(uri string) error {
	track, err := ParseTrackURI(uri)
	if err != nil {
		return err
	}
	p.current = &track
	fire(p.hooks.CurrentTrackChanged)
	return nil
}

// Position returns the playback position in microseconds.
func (p *Player) Position() int64 { return p.position }

// Seek moves the playback position by offset and announces the new position.
// The position never goes below zero.
func (p *Player) Seek(offset int64) {
	p.position += offset
	if p.position < 0 {
		p.position = 0
	}
	if p.hooks.Seeked != nil {
		p.hooks.Seeked(p.position)
	}
}

// SetPosition moves the playback position to an absolute value.
func (p *Player) SetPosition(position int64) {
	if position < 0 {
		position = 0
	}
	p.position = position
	if p.hooks.Seeked != nil {
		p.hooks.Seeked(p.position)
	}
}

// ParseTrackURI parses a demo track URI of the form
// dummy:///anything?track=Title&artist=Artist.
func ParseTrackURI(uri string) (Track, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return Track{}, fmt.Errorf("invalid track uri %q: %w", uri, err)
	}
	if parsed.Scheme != "dummy" {
		return Track{}, fmt.Errorf("invalid track uri %q: scheme must be 'dummy'", uri)
	}
	query := parsed.Query()
	return Track{
		URI:    uri,
		Title:  query.Get("track"),
		Artist: query.Get("artist"),
	}, nil
}

func (p *Player) currentIndex() (int, bool) {
	if p.current == nil {
		return 0, false
	}
	for i, track := range p.tracklist {
		if track.URI == p.current.URI {
			return i, true
		}
	}
	return 0, false
}

func fire(hook func()) {
	if hook != nil {
		hook()
	}
}
