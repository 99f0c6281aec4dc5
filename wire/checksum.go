package wire

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChecksumSize is the number of bytes in a message checksum.
const ChecksumSize = 4

// Checksum returns the first four bytes of the double sha256 of payload.
// It is the integrity tag carried in every message header.
func Checksum(payload []byte) [ChecksumSize]byte {
	var sum [ChecksumSize]byte
	copy(sum[:], chainhash.DoubleHashB(payload))
	return sum
}
