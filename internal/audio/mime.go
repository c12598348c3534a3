package audio

import "strings"

// DefaultMimeType is assumed when a client starts recording without declaring
// its container format.
const DefaultMimeType = "audio/webm"

// NormalizeMimeType trims the client-declared type and substitutes
// DefaultMimeType when nothing was declared. Codec parameters are kept since
// upstream transcribers accept them.
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return DefaultMimeType
	}
	return mimeType
}

// BaseMimeType returns the lower-cased type/subtype without parameters,
// e.g. "audio/webm" for "audio/webm;codecs=opus".
func BaseMimeType(mimeType string) string {
	mimeType = NormalizeMimeType(mimeType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if base == "" {
		return DefaultMimeType
	}
	return base
}
