package language

import "unicode/utf8"

// sniffLen is how many leading bytes are examined for binary markers.
const sniffLen = 512

// IsBinaryContent reports whether data looks like binary rather than text.
// A NUL byte in the leading bytes is the marker; text encodings never
// contain one.
func IsBinaryContent(data []byte) bool {
	n := len(data)
	if n > sniffLen {
		n = sniffLen
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

// IsText reports whether data can be treated as indexable text: not binary
// and valid UTF-8 within the sniff window (a rune split at the window edge
// is tolerated).
func IsText(data []byte) bool {
	if IsBinaryContent(data) {
		return false
	}
	if len(data) <= sniffLen {
		return utf8.Valid(data)
	}
	window := data[:sniffLen]
	for i := 0; i < utf8.UTFMax; i++ {
		if utf8.Valid(window) {
			return true
		}
		window = window[:len(window)-1]
	}
	return false
}
