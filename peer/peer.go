package peer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/ke-chain/btchandshake/wire"
)

const (
	// MaxProtocolVersion is the max protocol version the peer supports.
	MaxProtocolVersion = wire.ProtocolVersion

	// DefaultMinAcceptableProtocolVersion is the lowest protocol version
	// a remote peer may advertise when Config leaves it unset.
	DefaultMinAcceptableProtocolVersion = wire.MultipleAddressVersion
)

// NonceCache remembers the nonces of version messages sent so far.  It is
// shared by every peer of one process to detect connections to self and
// must be safe for concurrent access.
type NonceCache interface {
	Add(item interface{})
	Contains(item interface{}) bool
}

// Config is the struct to hold configuration options useful to Peer.  It is
// passed read-only to every peer and may be shared by concurrent peers.
type Config struct {
	// ChainNet identifies the network the peer is associated with.
	ChainNet wire.BitcoinNet

	// Services specifies which services to advertise as supported by the
	// local peer.
	Services wire.ServiceFlag

	// RemoteServices specifies the services the local peer perceives the
	// remote peer to support.  It is embedded in the receiving address of
	// the version message.
	RemoteServices wire.ServiceFlag

	// ProtocolVersion specifies the maximum protocol version to use and
	// advertise.  MaxProtocolVersion is used when unset.
	ProtocolVersion int32

	// MinAcceptableProtocolVersion is the lowest protocol version a
	// remote peer may advertise.  DefaultMinAcceptableProtocolVersion is
	// used when unset.
	MinAcceptableProtocolVersion int32

	// UserAgent is advertised in the version message.  The handshake
	// tool leaves it empty.
	UserAgent string

	// Dial opens the transport connection.  A net.Dialer is used when
	// unset.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)

	// Now returns the wall clock time stamped into version messages.
	Now func() time.Time

	// NewNonce draws the nonce of a version message.
	NewNonce func() (uint64, error)

	// SentNonces, when set, records sent nonces and is consulted to
	// detect connections to self.
	SentNonces NonceCache
}

// withDefaults returns a copy of the config with every unset collaborator
// filled in.
func (cfg Config) withDefaults() Config {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = MaxProtocolVersion
	}
	if cfg.MinAcceptableProtocolVersion == 0 {
		cfg.MinAcceptableProtocolVersion = DefaultMinAcceptableProtocolVersion
	}
	if cfg.Dial == nil {
		var d net.Dialer
		cfg.Dial = d.DialContext
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewNonce == nil {
		cfg.NewNonce = btcdwire.RandomUint64
	}
	return cfg
}

// Peer provides an outbound bitcoin peer that performs the initial
// handshake: it connects, exchanges version messages and then verack
// messages.  Each Peer owns its connection exclusively.
//
// The handshake steps are strictly sequential.  State and the remote
// information may be queried concurrently while it runs.
type Peer struct {
	// The following variables must only be used atomically.
	bytesReceived uint64
	bytesSent     uint64

	cfg  Config
	addr string

	conn   net.Conn
	reader *bufio.Reader

	flagsMtx        sync.Mutex // protects the peer flags below
	state           State
	protocolVersion int32            // negotiated protocol version
	remoteVersion   *wire.MsgVersion // version message received from peer
	verAckSkipped   bool             // peer closed instead of sending verack
}

// NewOutboundPeer returns a new outbound bitcoin peer for addr.  Call
// Handshake to connect and negotiate.
func NewOutboundPeer(cfg *Config, addr string) *Peer {
	c := cfg.withDefaults()
	return &Peer{
		cfg:             c,
		addr:            addr,
		state:           StateConnecting,
		protocolVersion: c.ProtocolVersion,
	}
}

// String returns the peer's address and directionality as a human-readable
// string.
//
// This function is safe for concurrent access.
func (p *Peer) String() string {
	return fmt.Sprintf("%s (outbound)", p.addr)
}

// Addr returns the peer address.
func (p *Peer) Addr() string {
	return p.addr
}

// State returns the current handshake state.
//
// This function is safe for concurrent access.
func (p *Peer) State() State {
	p.flagsMtx.Lock()
	state := p.state
	p.flagsMtx.Unlock()

	return state
}

// ProtocolVersion returns the negotiated peer protocol version.
//
// This function is safe for concurrent access.
func (p *Peer) ProtocolVersion() int32 {
	p.flagsMtx.Lock()
	protocolVersion := p.protocolVersion
	p.flagsMtx.Unlock()

	return protocolVersion
}

// RemoteVersion returns the version message received from the peer, or nil
// before it arrived.
//
// This function is safe for concurrent access.
func (p *Peer) RemoteVersion() *wire.MsgVersion {
	p.flagsMtx.Lock()
	msg := p.remoteVersion
	p.flagsMtx.Unlock()

	return msg
}

// UserAgent returns the user agent of the remote peer.
//
// This function is safe for concurrent access.
func (p *Peer) UserAgent() string {
	if msg := p.RemoteVersion(); msg != nil {
		return msg.UserAgent
	}
	return ""
}

// Services returns the services flag of the remote peer.
//
// This function is safe for concurrent access.
func (p *Peer) Services() wire.ServiceFlag {
	if msg := p.RemoteVersion(); msg != nil {
		return msg.Services
	}
	return 0
}

// StartingHeight returns the last known height the peer reported during
// the initial negotiation phase.
//
// This function is safe for concurrent access.
func (p *Peer) StartingHeight() int32 {
	if msg := p.RemoteVersion(); msg != nil {
		return msg.StartHeight
	}
	return 0
}

// VerAckSkipped returns whether the peer closed the connection instead of
// answering our verack.
//
// This function is safe for concurrent access.
func (p *Peer) VerAckSkipped() bool {
	p.flagsMtx.Lock()
	skipped := p.verAckSkipped
	p.flagsMtx.Unlock()

	return skipped
}

// BytesSent returns the total number of bytes sent by the peer.
//
// This function is safe for concurrent access.
func (p *Peer) BytesSent() uint64 {
	return atomic.LoadUint64(&p.bytesSent)
}

// BytesReceived returns the total number of bytes received by the peer.
//
// This function is safe for concurrent access.
func (p *Peer) BytesReceived() uint64 {
	return atomic.LoadUint64(&p.bytesReceived)
}

// Disconnect closes the connection to the peer, if any.
func (p *Peer) Disconnect() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Peer) setState(state State) {
	p.flagsMtx.Lock()
	p.state = state
	p.flagsMtx.Unlock()
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int
}

func (cr *countingReader) Read(b []byte) (int, error) {
	n, err := cr.r.Read(b)
	cr.n += n
	return n, err
}

// ReadMessage reads the next frame from the peer into payload, which must
// be a value of the expected message type.  Exactly one frame is consumed;
// any further buffered bytes stay available to the next read.
func (p *Peer) ReadMessage(payload wire.Payload) (*wire.Message, error) {
	cr := &countingReader{r: p.reader}
	msg := &wire.Message{Payload: payload}
	err := msg.Decode(cr)
	atomic.AddUint64(&p.bytesReceived, uint64(cr.n))
	if err != nil {
		return nil, err
	}

	log.Debugf("Received %v (%v) from %s", payload.Command(), msg.Net, p)
	log.Tracef("%v", newLogClosure(func() string {
		return spew.Sdump(msg)
	}))
	return msg, nil
}

// WriteMessage sends payload to the peer framed for the configured
// network.
func (p *Peer) WriteMessage(payload wire.Payload) error {
	msg := wire.NewMessage(p.cfg.ChainNet, payload)
	frame, err := msg.Bytes()
	if err != nil {
		return err
	}

	log.Debugf("Sending %v to %s", payload.Command(), p)
	log.Tracef("%v", newLogClosure(func() string {
		return spew.Sdump(msg)
	}))

	n, err := p.conn.Write(frame)
	atomic.AddUint64(&p.bytesSent, uint64(n))
	return err
}
