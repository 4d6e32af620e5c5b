// Package roomkey derives the fan-out keys used by the connection hub.
package roomkey

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"strconv"
)

const (
	pairPrefix  = "pair:"
	groupPrefix = "group:"
)

var ErrInvalidGroupName = errors.New("invalid group name")

// Key identifies one room in the hub.
type Key string

func (k Key) String() string { return string(k) }

// Pair returns the direct-message room key for two identities.
// Pair(a, b) == Pair(b, a). Every key is length-prefixed before hashing so
// identities containing separators cannot collide.
func Pair(a, b string) Key {
	if b < a {
		a, b = b, a
	}

	h := sha256.New()
	writeField(h, a)
	writeField(h, b)
	return Key(pairPrefix + hex.EncodeToString(h.Sum(nil)))
}

// Group returns the room key for an already decoded group name.
func Group(name string) Key {
	return Key(groupPrefix + name)
}

// GroupName decodes a group name taken from a URL path segment. Names are
// kept verbatim after decoding: no trimming, no case folding.
func GroupName(raw string) (string, error) {
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", ErrInvalidGroupName
	}
	if name == "" {
		return "", ErrInvalidGroupName
	}
	return name, nil
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, strconv.Itoa(len(s))+":"+s)
}
