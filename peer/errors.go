package peer

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongNetwork is returned when a peer answers on a different
	// bitcoin network than the one the handshake was started on.
	ErrWrongNetwork = errors.New("peer replied on a different network")

	// ErrSelfConnection is returned when the version reply carries a
	// nonce this process sent, meaning the connection loops back to us.
	ErrSelfConnection = errors.New("connected to self")

	// ErrProtocolVersionTooOld is returned when the peer advertises a
	// protocol version below the configured minimum.
	ErrProtocolVersionTooOld = errors.New("protocol version too old")
)

// ConnectError describes a failure to open the transport connection to a
// peer.
type ConnectError struct {
	Addr string
	Err  error
}

// Error satisfies the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect to %s: %v", e.Addr, e.Err)
}

// Unwrap returns the underlying dial error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}
