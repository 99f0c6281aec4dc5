package connmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/ke-chain/btchandshake/peer"
	"github.com/ke-chain/btchandshake/wire"
)

// ErrTimeout is reported for an attempt that did not complete within the
// configured timeout.
var ErrTimeout = errors.New("handshake timed out")

// FailureReason classifies why a handshake attempt failed.
type FailureReason int

// These constants are the possible failure reasons.  ReasonNone is the
// reason of a successful attempt.
const (
	ReasonNone FailureReason = iota
	ReasonConnect
	ReasonTimeout
	ReasonCanceled
	ReasonWrongNetwork
	ReasonSelfConnection
	ReasonVersionTooOld
	ReasonProtocol
	ReasonIO
)

var reasonStrings = map[FailureReason]string{
	ReasonNone:           "none",
	ReasonConnect:        "connect",
	ReasonTimeout:        "timeout",
	ReasonCanceled:       "canceled",
	ReasonWrongNetwork:   "wrong network",
	ReasonSelfConnection: "self connection",
	ReasonVersionTooOld:  "version too old",
	ReasonProtocol:       "protocol",
	ReasonIO:             "io",
}

// String returns the FailureReason in human-readable form.
func (r FailureReason) String() string {
	if s, ok := reasonStrings[r]; ok {
		return s
	}
	return fmt.Sprintf("Unknown FailureReason (%d)", int(r))
}

// classify determines the failure reason of err returned by an attempt run
// under ctx.  The context is only consulted for errors it may have caused:
// context errors and I/O on a connection it closed.
func classify(ctx context.Context, err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, peer.ErrWrongNetwork):
		return ReasonWrongNetwork
	case errors.Is(err, peer.ErrSelfConnection):
		return ReasonSelfConnection
	case errors.Is(err, peer.ErrProtocolVersionTooOld):
		return ReasonVersionTooOld
	}

	var connErr *peer.ConnectError
	if errors.As(err, &connErr) {
		return ReasonConnect
	}

	// Reads and writes interrupted by the context closing the connection.
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return ReasonTimeout
		case context.Canceled:
			return ReasonCanceled
		}
		return ReasonIO
	}

	// A stream ending early is the peer hanging up, not a malformed frame.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ReasonIO
	}

	var msgErr *wire.MessageError
	if errors.As(err, &msgErr) {
		return ReasonProtocol
	}
	return ReasonIO
}

// Outcome is the result of the handshake with one peer.
type Outcome struct {
	Index    int // position of the address in the submitted batch
	Addr     string
	Err      error
	Reason   FailureReason
	State    peer.State // state the handshake ended in
	Duration time.Duration

	// Details reported by the remote peer.  Zero unless its version
	// message was accepted.
	UserAgent       string
	ProtocolVersion int32
	Services        wire.ServiceFlag
	StartHeight     int32
	VerAckSkipped   bool

	BytesSent     uint64
	BytesReceived uint64
}

// Success returns whether the handshake completed.
func (o *Outcome) Success() bool {
	return o.Err == nil
}

// Summary aggregates the outcomes of a batch of handshakes.  Every submitted
// address has exactly one outcome, repeated addresses included.
type Summary struct {
	Successes int
	Failures  int

	// outcomes maps each attempt's Index to its *Outcome in completion
	// order.
	outcomes *ordered_map.OrderedMap
}

func newSummary() *Summary {
	return &Summary{outcomes: ordered_map.NewOrderedMap()}
}

func (s *Summary) add(o *Outcome) {
	if o.Success() {
		s.Successes++
	} else {
		s.Failures++
	}
	s.outcomes.Set(o.Index, o)
}

// Total returns the number of attempts in the batch.
func (s *Summary) Total() int {
	return s.Successes + s.Failures
}

// Outcomes returns every outcome in the order the attempts completed.
func (s *Summary) Outcomes() []*Outcome {
	outcomes := make([]*Outcome, 0, s.outcomes.Len())
	iter := s.outcomes.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		outcomes = append(outcomes, kv.Value.(*Outcome))
	}
	return outcomes
}

// Attempt returns the outcome of the attempt submitted at position index.
func (s *Summary) Attempt(index int) (*Outcome, bool) {
	v, ok := s.outcomes.Get(index)
	if !ok {
		return nil, false
	}
	return v.(*Outcome), true
}

// Outcome returns the first completed outcome of an attempt against addr.
func (s *Summary) Outcome(addr string) (*Outcome, bool) {
	for _, o := range s.Outcomes() {
		if o.Addr == addr {
			return o, true
		}
	}
	return nil, false
}

// FailureReasons returns the number of failed attempts per reason.
func (s *Summary) FailureReasons() map[FailureReason]int {
	reasons := make(map[FailureReason]int)
	for _, o := range s.Outcomes() {
		if !o.Success() {
			reasons[o.Reason]++
		}
	}
	return reasons
}
