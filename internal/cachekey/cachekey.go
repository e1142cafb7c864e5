// Package cachekey defines the reversible key encoding and entry kinds used
// to address cached metadata across the hot cache and the persistent store.
package cachekey

import (
	"encoding/base64"
	"fmt"
)

// Key is the encoded form of a source identifier (a track/album/artist URI or
// an external ID). The encoding is a pure byte transform: deterministic,
// collision-free, and reversible without a lookup table. The encoded string is
// safe to embed in filenames and SQL parameters.
type Key string

// Encode converts a raw identifier into its cache key.
func Encode(id string) Key {
	return Key(base64.RawURLEncoding.EncodeToString([]byte(id)))
}

// Decode recovers the original identifier from a key.
func (k Key) Decode() (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(k))
	if err != nil {
		return "", fmt.Errorf("decode cache key %q: %w", string(k), err)
	}
	return string(raw), nil
}

func (k Key) String() string {
	return string(k)
}

// Kind enumerates the cached entry categories. Values are stored in the
// database; never renumber existing ones.
type Kind int

const (
	KindArt Kind = iota + 1
	KindArtThumb
	KindAvatar
	KindAvatarThumb
	KindAlbumInfo
	KindArtistInfo
	KindLyrics
	KindRating
)

var kindNames = map[Kind]string{
	KindArt:         "art",
	KindArtThumb:    "art-thumb",
	KindAvatar:      "avatar",
	KindAvatarThumb: "avatar-thumb",
	KindAlbumInfo:   "album-info",
	KindArtistInfo:  "artist-info",
	KindLyrics:      "lyrics",
	KindRating:      "rating",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k names a known entry kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Token identifies one in-flight fetch: requests sharing a token share a
// single execution.
type Token struct {
	Key  Key
	Kind Kind
}

func (t Token) String() string {
	return t.Key.String() + "/" + t.Kind.String()
}
