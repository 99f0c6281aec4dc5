package connmgr

import (
	"time"

	"github.com/ke-chain/btchandshake/peer"
)

const (
	// DefaultTimeout is the time a single handshake attempt may take when
	// Config leaves it unset.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxSentNonces is the number of sent version nonces remembered
	// to detect connections to self.
	DefaultMaxSentNonces = 50
)

// Config is a configuration struct used to initialize a new Manager.
type Config struct {
	// Peer is the configuration handed read-only to every attempt.  Its
	// SentNonces cache is provided by the Manager when left unset.
	Peer peer.Config

	// Timeout bounds each handshake attempt individually.
	Timeout time.Duration

	// Lookup resolves a seed host name to IP addresses.  The system
	// resolver is used when unset.
	Lookup LookupFunc

	// MaxSentNonces is the capacity of the sent nonce cache.
	MaxSentNonces uint
}
