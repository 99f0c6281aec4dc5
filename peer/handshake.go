package peer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ke-chain/btchandshake/wire"
)

// State is the stage an outbound handshake has reached.
type State int

// The handshake moves through these states in order.  StateFailed is
// reachable from every state before StateComplete.
const (
	StateConnecting State = iota
	StateAwaitingVersion
	StateAwaitingVerAck
	StateComplete
	StateFailed
)

var stateStrings = map[State]string{
	StateConnecting:      "connecting",
	StateAwaitingVersion: "awaiting version",
	StateAwaitingVerAck:  "awaiting verack",
	StateComplete:        "complete",
	StateFailed:          "failed",
}

// String returns the State in human-readable form.
func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown State (%d)", int(s))
}

// Handshake connects to the peer and performs the version/verack exchange.
// The connection is left open on success; call Disconnect when done.
//
// The context bounds the whole exchange: when it is done every blocking
// read, write or dial is abandoned and its error is returned, wrapping
// ctx.Err().
func (p *Peer) Handshake(ctx context.Context) error {
	if err := p.connect(ctx); err != nil {
		return p.fail(ctx, err)
	}

	// Unblock pending I/O once the context is done.
	stop := make(chan struct{})
	defer close(stop)
	if deadline, ok := ctx.Deadline(); ok {
		p.conn.SetDeadline(deadline)
	}
	go func() {
		select {
		case <-ctx.Done():
			p.conn.Close()
		case <-stop:
		}
	}()

	if err := p.exchangeVersion(); err != nil {
		return p.fail(ctx, err)
	}
	if err := p.exchangeVerAck(); err != nil {
		return p.fail(ctx, err)
	}

	p.setState(StateComplete)
	log.Debugf("Handshake with %s complete (%s, protocol version %d)",
		p, p.UserAgent(), p.ProtocolVersion())
	return nil
}

// fail moves the peer to StateFailed and annotates err with the state the
// handshake failed in.
func (p *Peer) fail(ctx context.Context, err error) error {
	state := p.State()
	p.setState(StateFailed)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%v: %w", state, err)
}

// connect opens the transport connection.
func (p *Peer) connect(ctx context.Context) error {
	log.Debugf("Connecting to %s", p.addr)
	conn, err := p.cfg.Dial(ctx, "tcp", p.addr)
	if err != nil {
		return &ConnectError{Addr: p.addr, Err: err}
	}
	p.conn = conn
	p.reader = bufio.NewReader(conn)
	return nil
}

// localVersionMsg creates a version message that can be used to send to the
// remote peer.
func (p *Peer) localVersionMsg() (*wire.MsgVersion, error) {
	theirNA, err := wire.NewNetAddress(p.conn.RemoteAddr(),
		p.cfg.RemoteServices)
	if err != nil {
		return nil, err
	}
	ourNA, err := wire.NewNetAddress(p.conn.LocalAddr(), p.cfg.Services)
	if err != nil {
		return nil, err
	}

	nonce, err := p.cfg.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	msg := wire.NewMsgVersion(ourNA, theirNA, nonce, 0)
	msg.ProtocolVersion = p.cfg.ProtocolVersion
	msg.Services = p.cfg.Services
	msg.Timestamp = time.Unix(p.cfg.Now().Unix(), 0)
	if err := msg.SetUserAgent(p.cfg.UserAgent); err != nil {
		return nil, err
	}
	return msg, nil
}

// exchangeVersion sends our version message and reads the version reply.
// The reply must be on our network, must not carry one of our own nonces
// and must advertise an acceptable protocol version, in that order.
func (p *Peer) exchangeVersion() error {
	localVer, err := p.localVersionMsg()
	if err != nil {
		return err
	}
	if p.cfg.SentNonces != nil {
		p.cfg.SentNonces.Add(localVer.Nonce)
	}
	if err := p.WriteMessage(localVer); err != nil {
		return err
	}
	p.setState(StateAwaitingVersion)

	remoteVer := &wire.MsgVersion{}
	msg, err := p.ReadMessage(remoteVer)
	if err != nil {
		return err
	}
	if msg.Net != p.cfg.ChainNet {
		return fmt.Errorf("%w: sent %v, received %v", ErrWrongNetwork,
			p.cfg.ChainNet, msg.Net)
	}
	if p.cfg.SentNonces != nil && p.cfg.SentNonces.Contains(remoteVer.Nonce) {
		return fmt.Errorf("%w: nonce %x", ErrSelfConnection,
			remoteVer.Nonce)
	}
	if remoteVer.ProtocolVersion < p.cfg.MinAcceptableProtocolVersion {
		return fmt.Errorf("%w: %d, minimum %d", ErrProtocolVersionTooOld,
			remoteVer.ProtocolVersion,
			p.cfg.MinAcceptableProtocolVersion)
	}

	p.flagsMtx.Lock()
	p.remoteVersion = remoteVer
	if remoteVer.ProtocolVersion < p.protocolVersion {
		p.protocolVersion = remoteVer.ProtocolVersion
	}
	p.flagsMtx.Unlock()

	log.Debugf("Received version from %s: %s, protocol %d, services %v, "+
		"height %d", p, remoteVer.UserAgent, remoteVer.ProtocolVersion,
		remoteVer.Services, remoteVer.StartHeight)
	return nil
}

// exchangeVerAck sends our verack and waits for the peer's.  A peer that
// closes the stream cleanly before sending a single byte is accepted: many
// implementations never answer with a verack.  Note that a clean close
// cannot be told apart from a peer that gave up on us at this point.
func (p *Peer) exchangeVerAck() error {
	if err := p.WriteMessage(wire.NewMsgVerAck()); err != nil {
		return err
	}
	p.setState(StateAwaitingVerAck)

	if _, err := p.reader.Peek(1); err != nil {
		if err != io.EOF {
			return err
		}
		log.Infof("Peer %s closed the connection without sending verack", p)
		p.flagsMtx.Lock()
		p.verAckSkipped = true
		p.flagsMtx.Unlock()
		return nil
	}

	msg, err := p.ReadMessage(wire.NewMsgVerAck())
	if err != nil {
		return err
	}
	if msg.Net != p.cfg.ChainNet {
		return fmt.Errorf("%w: sent %v, received %v", ErrWrongNetwork,
			p.cfg.ChainNet, msg.Net)
	}
	return nil
}
