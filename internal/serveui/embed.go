// Package serveui embeds the browser chat page served by `seek-chat serve`.
package serveui

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
)

//go:embed static/index.html
var indexHTML []byte

var indexETag = func() string {
	sum := sha256.Sum256(indexHTML)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// IndexHTML returns a copy of the chat page.
func IndexHTML() []byte {
	out := make([]byte, len(indexHTML))
	copy(out, indexHTML)
	return out
}

// ETag is a strong validator for the embedded page.
func ETag() string {
	return indexETag
}
