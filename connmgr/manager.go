package connmgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/decred/dcrd/lru"
	"github.com/ke-chain/btchandshake/peer"
)

// handshakeDoneMsg signifies a finished handshake attempt to the result
// handler.
type handshakeDoneMsg struct {
	outcome *Outcome
}

// Manager runs the initial handshake against many peers concurrently.  Each
// attempt owns its connection and is bounded by its own timeout; outcomes
// are passed back to a single handler which tallies them, so no attempt
// ever waits on another.
//
// The cache of sent nonces is the only state shared by concurrent attempts.
// It is safe for concurrent access and never blocks an attempt for long.
type Manager struct {
	cfg        Config
	sentNonces lru.Cache
}

// New constructs a new Manager.
func New(config *Config) (*Manager, error) {
	if !config.Peer.ChainNet.IsKnown() {
		return nil, fmt.Errorf("unknown bitcoin network %v",
			config.Peer.ChainNet)
	}
	if config.Timeout < 0 {
		return nil, fmt.Errorf("negative handshake timeout %v",
			config.Timeout)
	}

	m := Manager{cfg: *config}
	if m.cfg.Timeout == 0 {
		m.cfg.Timeout = DefaultTimeout
	}
	if m.cfg.Lookup == nil {
		m.cfg.Lookup = net.DefaultResolver.LookupHost
	}
	if m.cfg.MaxSentNonces == 0 {
		m.cfg.MaxSentNonces = DefaultMaxSentNonces
	}
	m.sentNonces = lru.NewCache(m.cfg.MaxSentNonces)
	if m.cfg.Peer.SentNonces == nil {
		m.cfg.Peer.SentNonces = &m.sentNonces
	}
	return &m, nil
}

// HandshakeSeed resolves the DNS seed host and performs the handshake with
// every address found on the given port.
func (m *Manager) HandshakeSeed(ctx context.Context, host string,
	port uint16) (*Summary, error) {

	addrs, err := ResolveSeed(ctx, m.cfg.Lookup, host, port)
	if err != nil {
		return nil, err
	}
	return m.HandshakeAll(ctx, addrs), nil
}

// HandshakeAll performs the handshake with every address concurrently and
// returns once each attempt has succeeded, failed or timed out.  Every entry
// of addrs is attempted and counted, so a repeated address is attempted once
// per occurrence.
func (m *Manager) HandshakeAll(ctx context.Context, addrs []string) *Summary {
	// Buffered so a finished attempt never blocks on the handler.
	msgChan := make(chan *handshakeDoneMsg, len(addrs))
	for i, addr := range addrs {
		go m.handshakePeer(ctx, i, addr, msgChan)
	}

	return m.resultHandler(msgChan, len(addrs))
}

// resultHandler collects pending outcomes from msgChan in completion order.
func (m *Manager) resultHandler(msgChan <-chan *handshakeDoneMsg,
	pending int) *Summary {

	summary := newSummary()
	for ; pending > 0; pending-- {
		msg := <-msgChan
		o := msg.outcome
		summary.add(o)

		switch {
		case o.Success() && o.VerAckSkipped:
			log.Infof("Handshake with %s succeeded without verack "+
				"(%s, protocol %d)", o.Addr, o.UserAgent,
				o.ProtocolVersion)
		case o.Success():
			log.Infof("Handshake with %s succeeded (%s, protocol %d)",
				o.Addr, o.UserAgent, o.ProtocolVersion)
		case o.Reason == ReasonTimeout:
			log.Infof("Handshake with %s timed out: %v", o.Addr, o.Err)
		default:
			log.Infof("Handshake with %s failed (%v): %v", o.Addr,
				o.Reason, o.Err)
		}
	}
	log.Tracef("Result handler done")
	return summary
}

// handshakePeer runs one attempt under its own timeout and reports the
// outcome on msgChan.  An attempt still running when the timeout expires is
// abandoned and reported at once; it closes its connection on its own.
func (m *Manager) handshakePeer(ctx context.Context, index int, addr string,
	msgChan chan<- *handshakeDoneMsg) {

	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	p := peer.NewOutboundPeer(&m.cfg.Peer, addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Handshake(attemptCtx)
	}()

	var err error
	select {
	case err = <-errChan:
		p.Disconnect()
	case <-attemptCtx.Done():
		err = attemptCtx.Err()
		go func() {
			<-errChan
			p.Disconnect()
		}()
	}

	outcome := &Outcome{
		Index:         index,
		Addr:          addr,
		Err:           err,
		Reason:        classify(attemptCtx, err),
		State:         p.State(),
		Duration:      time.Since(start),
		BytesSent:     p.BytesSent(),
		BytesReceived: p.BytesReceived(),
	}
	if outcome.Reason == ReasonTimeout && !errors.Is(err, ErrTimeout) {
		outcome.Err = fmt.Errorf("%w after %v (%v)", ErrTimeout,
			m.cfg.Timeout, err)
	}
	if remote := p.RemoteVersion(); remote != nil {
		outcome.UserAgent = remote.UserAgent
		outcome.ProtocolVersion = remote.ProtocolVersion
		outcome.Services = remote.Services
		outcome.StartHeight = remote.StartHeight
	}
	outcome.VerAckSkipped = err == nil && p.VerAckSkipped()

	msgChan <- &handshakeDoneMsg{outcome: outcome}
}
