package soundcard

import (
	"bytes"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gen2brain/malgo"
)

const hexPrefix = "hex:"

// encodeID turns a miniaudio device id into a stable string. Printable ids
// such as ALSA's "hw:1,0" are kept as is, anything else is hex encoded.
func encodeID(id malgo.DeviceID) string {
	raw := bytes.TrimRight(id[:], "\x00")
	if len(raw) == 0 {
		return ""
	}
	if printable(raw) {
		return string(raw)
	}
	return hexPrefix + hex.EncodeToString(raw)
}

// decodeID reverses encodeID.
func decodeID(s string) (malgo.DeviceID, bool) {
	var id malgo.DeviceID
	raw := []byte(s)
	if rest, ok := strings.CutPrefix(s, hexPrefix); ok {
		var err error
		if raw, err = hex.DecodeString(rest); err != nil {
			return id, false
		}
	}
	if len(raw) == 0 || len(raw) > len(id) {
		return id, false
	}
	copy(id[:], raw)
	return id, true
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return !strings.HasPrefix(string(b), hexPrefix)
}
