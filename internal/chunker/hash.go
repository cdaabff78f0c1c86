package chunker

import (
	"encoding/hex"

	"github.com/minio/highwayhash"
)

// hashKey is a fixed 32-byte key: content hashing here is about stable,
// collision-resistant chunk ids, not keyed authentication, so a constant
// key is appropriate.
var hashKey = make([]byte, 32)

// contentHash returns a stable hex digest of text, used as the TextChunk id
// so the same content yields the same id across runs.
func contentHash(text string) string {
	h, err := highwayhash.New(hashKey)
	if err != nil {
		// hashKey is a fixed, valid 32-byte key; this cannot happen.
		panic(err)
	}
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
