// Package sharelink encodes arbitrary JSON payloads into URL hash fragments
// and back: JSON, raw-DEFLATE compressed, base64url without padding.
// Decoding fails closed: malformed input yields "no data", never an error.
package sharelink

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// Known share-link action types.
const (
	ActionPlayMusic      = "play-music"
	ActionImportUserData = "import-saved-user-data"
	ActionImportPlaylist = "import-saveable-playlist-data"
)

// maxDecodedSize caps decompression output so a hostile link cannot balloon
// memory.
const maxDecodedSize = 8 << 20

// Action is the typed envelope carried by share links.
type Action struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PlayMusicData asks the player to start a specific track.
type PlayMusicData struct {
	MusicSrc string `json:"musicSrc"`
}

// ImportPlaylistData carries a shared playlist's contents.
type ImportPlaylistData struct {
	Title string   `json:"title"`
	List  []string `json:"list"`
}

// Encode serializes the value into a "#"-prefixed hash fragment.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode payload")
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", errors.Wrap(err, "failed to create compressor")
	}
	if _, err := w.Write(raw); err != nil {
		return "", errors.Wrap(err, "failed to compress payload")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "failed to flush compressor")
	}

	return "#" + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeAction wraps the data in an Action envelope and encodes it.
func EncodeAction(actionType string, data any) (string, error) {
	return Encode(Action{Type: actionType, Data: data})
}

// Decode reverses Encode. The second return is false for any input that is
// not a well-formed fragment; garbage never produces an error or a panic.
func Decode(hash string) (map[string]any, bool) {
	if len(hash) == 0 || hash[0] != '#' {
		return nil, false
	}

	compressed, err := base64.RawURLEncoding.DecodeString(hash[1:])
	if err != nil {
		return nil, false
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	raw, err := io.ReadAll(io.LimitReader(r, maxDecodedSize))
	if err != nil {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// DecodeAction decodes a fragment carrying an Action envelope, returning its
// type and raw data payload.
func DecodeAction(hash string) (actionType string, data any, ok bool) {
	payload, ok := Decode(hash)
	if !ok {
		return "", nil, false
	}

	actionType, ok = payload["type"].(string)
	if !ok || actionType == "" {
		return "", nil, false
	}
	return actionType, payload["data"], true
}

// DecodeInto maps a decoded payload onto a typed struct, honoring json tags.
func DecodeInto(payload any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create payload decoder")
	}
	if err := dec.Decode(payload); err != nil {
		return errors.Wrap(err, "failed to decode payload")
	}
	return nil
}
