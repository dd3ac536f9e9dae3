package mediaservice

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	trackPathPrefix    = ObjectPath + "/TrackList/Track"
	playlistPathPrefix = ObjectPath + "/Playlist/Playlist"
)

// trackURIToPath encodes a track URI as an object-path-safe identifier by
// hex-encoding it under the track path prefix.
func trackURIToPath(uri string) string {
	return trackPathPrefix + strings.ToUpper(hex.EncodeToString([]byte(uri)))
}

// trackPathToURI reverses trackURIToPath.
func trackPathToURI(path string) (string, error) {
	encoded, ok := strings.CutPrefix(path, trackPathPrefix)
	if !ok {
		return "", fmt.Errorf("invalid track path %q", path)
	}
	uri, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid track path %q: %w", path, err)
	}
	return string(uri), nil
}

// playlistIndexToPath encodes a playlist index as an object path.
func playlistIndexToPath(index int) string {
	return playlistPathPrefix + strconv.Itoa(index)
}

// playlistPathToIndex reverses playlistIndexToPath.
func playlistPathToIndex(path string) (int, error) {
	raw, ok := strings.CutPrefix(path, playlistPathPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid playlist path %q", path)
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid playlist path %q: %w", path, err)
	}
	return index, nil
}
