package fact

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for algorithm migration without colliding with old digests.
const (
	// DomainAsset addresses uploaded image bytes. Token and scene images
	// are keyed by this digest wherever they appear: the image/checksum
	// attribute, token/image values, and the gateway's asset table.
	DomainAsset = "tabletop/asset/v1"
	// DomainSnapshot fingerprints an encoded fact set. Used by the export
	// format to detect corrupted images before any write happens.
	DomainSnapshot = "tabletop/snapshot/v1"
)

// DefaultImage is the checksum value tokens fall back to when their image
// is absent from the library, e.g. after pasting a clipboard captured in a
// store that held images this one lacks. Renderers treat it as the stock
// placeholder artwork.
const DefaultImage = "default"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AssetChecksum computes the content address of image bytes.
func AssetChecksum(data []byte) string {
	return hashWithDomain(DomainAsset, data)
}

// SnapshotChecksum fingerprints an encoded fact set.
func SnapshotChecksum(encoded []byte) string {
	return hashWithDomain(DomainSnapshot, encoded)
}
