package imessage

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

// nsStringMarker precedes the text payload inside a serialised
// NSAttributedString typedstream blob.
var nsStringMarker = []byte("NSString")

// lengthIntroducer is the byte that separates the type descriptors from
// the length field ('+').
const lengthIntroducer = 0x2B

// decodeAttributedBody extracts the plain text from an NSAttributedString
// typedstream blob.
//
// Layout after the NSString marker: a run of type-descriptor bytes, the
// 0x2B introducer, then a variable-length size field. A size byte below
// 0x80 is the text length itself; otherwise its low seven bits give the
// number of little-endian bytes that follow holding the length. The text
// is UTF-8 with invalid sequences replaced.
//
// Any malformed blob — missing marker, truncated length field, or a
// length past the end of the blob — yields ("", false) rather than an
// error; callers skip such records.
func decodeAttributedBody(blob []byte) (string, bool) {
	idx := bytes.Index(blob, nsStringMarker)
	if idx < 0 {
		return "", false
	}

	pos := idx + len(nsStringMarker)
	for pos < len(blob) && blob[pos] != lengthIntroducer {
		pos++
	}
	pos++ // skip the introducer itself
	if pos >= len(blob) {
		return "", false
	}

	lengthByte := int(blob[pos])
	pos++

	textLen := lengthByte
	if lengthByte >= 0x80 {
		numExtra := lengthByte & 0x7F
		if numExtra > 8 || pos+numExtra > len(blob) {
			return "", false
		}
		n := leUint(blob[pos : pos+numExtra])
		pos += numExtra
		// Bounds-check in uint64 space; a corrupt length near MaxInt64
		// would wrap negative after conversion and slip past an int check.
		if n > uint64(len(blob)-pos) {
			return "", false
		}
		textLen = int(n)
	}

	if textLen > len(blob)-pos {
		return "", false
	}

	return replaceInvalidUTF8(blob[pos : pos+textLen]), true
}

// leUint decodes up to eight little-endian bytes as an unsigned integer.
func leUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// replaceInvalidUTF8 decodes b as UTF-8, substituting the replacement
// character for invalid sequences instead of failing.
func replaceInvalidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
