package peer

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/decred/dcrd/lru"
	"github.com/ke-chain/btchandshake/wire"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0)

// remote is the far end of a test connection.
type remote struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (r *remote) read(payload wire.Payload) (*wire.Message, error) {
	msg := &wire.Message{Payload: payload}
	return msg, msg.Decode(r.reader)
}

func (r *remote) write(chainNet wire.BitcoinNet, payload wire.Payload) error {
	return wire.NewMessage(chainNet, payload).Encode(r.conn)
}

// remoteVersion returns a version message as a remote node would send it.
func remoteVersion(nonce uint64) *wire.MsgVersion {
	me := wire.NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333,
		wire.SFNodeNetwork|wire.SFNodeWitness)
	you := wire.NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 0, 0)
	msg := wire.NewMsgVersion(me, you, nonce, 800000)
	msg.ProtocolVersion = 70016
	msg.Services = wire.SFNodeNetwork | wire.SFNodeWitness
	msg.UserAgent = "/Satoshi:25.0.0/"
	msg.Relay = true
	return msg
}

// startRemote listens on loopback and runs handler for the first accepted
// connection.  The handler's result is delivered on the returned channel.
func startRemote(t *testing.T, handler func(r *remote) error) (string, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		done <- handler(&remote{conn: conn, reader: bufio.NewReader(conn)})
	}()
	return ln.Addr().String(), done
}

// politeRemote answers like a well behaved full node: version then verack,
// and waits for our verack before hanging up.
func politeRemote(chainNet wire.BitcoinNet, got chan<- *wire.MsgVersion) func(*remote) error {
	return func(r *remote) error {
		version := &wire.MsgVersion{}
		if _, err := r.read(version); err != nil {
			return err
		}
		if got != nil {
			got <- version
		}
		if err := r.write(chainNet, remoteVersion(0xcafe)); err != nil {
			return err
		}
		if err := r.write(chainNet, wire.NewMsgVerAck()); err != nil {
			return err
		}
		_, err := r.read(&wire.MsgVerAck{})
		return err
	}
}

func testConfig() *Config {
	return &Config{
		ChainNet:       wire.MainNet,
		Services:       wire.SFNodeNetwork,
		RemoteServices: wire.SFNodeNetwork | wire.SFNodeBloom,
		Now:            func() time.Time { return testNow },
		NewNonce:       func() (uint64, error) { return 0x1122334455667788, nil },
	}
}

func TestHandshakeComplete(t *testing.T) {
	got := make(chan *wire.MsgVersion, 1)
	addr, done := startRemote(t, politeRemote(wire.MainNet, got))

	p := NewOutboundPeer(testConfig(), addr)
	require.Equal(t, StateConnecting, p.State())

	err := p.Handshake(context.Background())
	require.NoError(t, err)
	defer p.Disconnect()
	require.NoError(t, <-done)

	require.Equal(t, StateComplete, p.State())
	require.False(t, p.VerAckSkipped())
	require.Equal(t, "/Satoshi:25.0.0/", p.UserAgent())
	require.Equal(t, wire.SFNodeNetwork|wire.SFNodeWitness, p.Services())
	require.Equal(t, int32(800000), p.StartingHeight())
	require.Equal(t, MaxProtocolVersion, p.ProtocolVersion())
	require.Equal(t, uint64(wire.MessageHeaderSize*2+85), p.BytesSent())
	require.Equal(t, uint64(wire.MessageHeaderSize*2+85+16),
		p.BytesReceived())

	// The version message we sent describes the live connection.
	sent := <-got
	_, port, _ := net.SplitHostPort(addr)
	require.Equal(t, MaxProtocolVersion, sent.ProtocolVersion)
	require.Equal(t, wire.SFNodeNetwork, sent.Services)
	require.Equal(t, testNow.Unix(), sent.Timestamp.Unix())
	require.Equal(t, uint64(0x1122334455667788), sent.Nonce)
	require.Equal(t, "", sent.UserAgent)
	require.Equal(t, int32(0), sent.StartHeight)
	require.False(t, sent.Relay)
	require.True(t, sent.AddrYou.IP.Equal(net.ParseIP("127.0.0.1")))
	require.Equal(t, port, strconv.Itoa(int(sent.AddrYou.Port)))
	require.Equal(t, wire.SFNodeNetwork|wire.SFNodeBloom, sent.AddrYou.Services)
	require.True(t, sent.AddrMe.IP.Equal(net.ParseIP("127.0.0.1")))
	require.Equal(t, wire.SFNodeNetwork, sent.AddrMe.Services)
	require.NotZero(t, sent.AddrMe.Port)
}

// A remote that hangs up instead of sending verack is tolerated.  This
// cannot be distinguished from a remote that closed partway for any other
// reason, as both leave zero bytes on the stream.
func TestHandshakeVerAckSilence(t *testing.T) {
	addr, done := startRemote(t, func(r *remote) error {
		if _, err := r.read(&wire.MsgVersion{}); err != nil {
			return err
		}
		if err := r.write(wire.MainNet, remoteVersion(1)); err != nil {
			return err
		}
		_, err := r.read(&wire.MsgVerAck{})
		return err
	})

	p := NewOutboundPeer(testConfig(), addr)
	err := p.Handshake(context.Background())
	require.NoError(t, err)
	defer p.Disconnect()
	require.NoError(t, <-done)

	require.Equal(t, StateComplete, p.State())
	require.True(t, p.VerAckSkipped())
}

func TestHandshakeWrongNetwork(t *testing.T) {
	tests := []struct {
		name    string
		handler func(r *remote) error
	}{
		{
			name:    "version reply",
			handler: politeRemote(wire.TestNet3, nil),
		},
		{
			name: "verack reply",
			handler: func(r *remote) error {
				if _, err := r.read(&wire.MsgVersion{}); err != nil {
					return err
				}
				err := r.write(wire.MainNet, remoteVersion(1))
				if err != nil {
					return err
				}
				err = r.write(wire.SigNet, wire.NewMsgVerAck())
				if err != nil {
					return err
				}
				_, err = r.read(&wire.MsgVerAck{})
				return err
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			addr, _ := startRemote(t, test.handler)

			p := NewOutboundPeer(testConfig(), addr)
			err := p.Handshake(context.Background())
			p.Disconnect()
			require.True(t, errors.Is(err, ErrWrongNetwork), "got %v", err)
			require.Equal(t, StateFailed, p.State())
		})
	}
}

func TestHandshakeSelfConnection(t *testing.T) {
	addr, _ := startRemote(t, func(r *remote) error {
		version := &wire.MsgVersion{}
		if _, err := r.read(version); err != nil {
			return err
		}
		// Echo our own version back as a loop would.
		return r.write(wire.MainNet, version)
	})

	cache := lru.NewCache(10)
	cfg := testConfig()
	cfg.SentNonces = &cache

	p := NewOutboundPeer(cfg, addr)
	err := p.Handshake(context.Background())
	p.Disconnect()
	require.True(t, errors.Is(err, ErrSelfConnection), "got %v", err)
	require.True(t, cache.Contains(uint64(0x1122334455667788)))
}

func TestHandshakeProtocolVersionTooOld(t *testing.T) {
	addr, _ := startRemote(t, func(r *remote) error {
		if _, err := r.read(&wire.MsgVersion{}); err != nil {
			return err
		}
		old := remoteVersion(1)
		old.ProtocolVersion = 106
		return r.write(wire.MainNet, old)
	})

	p := NewOutboundPeer(testConfig(), addr)
	err := p.Handshake(context.Background())
	p.Disconnect()
	require.True(t, errors.Is(err, ErrProtocolVersionTooOld), "got %v", err)
	require.Nil(t, p.RemoteVersion())
}

func TestHandshakeMalformedReply(t *testing.T) {
	addr, _ := startRemote(t, func(r *remote) error {
		if _, err := r.read(&wire.MsgVersion{}); err != nil {
			return err
		}
		// A verack where the version reply belongs.
		return r.write(wire.MainNet, wire.NewMsgVerAck())
	})

	p := NewOutboundPeer(testConfig(), addr)
	err := p.Handshake(context.Background())
	p.Disconnect()
	require.True(t, wire.IsErrorCode(err, wire.ErrCommandNameUnknown),
		"got %v", err)
	require.Equal(t, StateFailed, p.State())
}

func TestHandshakeConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := NewOutboundPeer(testConfig(), addr)
	err = p.Handshake(context.Background())

	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr), "got %v", err)
	require.Equal(t, addr, connErr.Addr)
	require.Equal(t, StateFailed, p.State())
}

func TestHandshakeTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	addr, _ := startRemote(t, func(r *remote) error {
		// Read the version and never answer.
		_, err := r.read(&wire.MsgVersion{})
		<-release
		return err
	})

	ctx, cancel := context.WithTimeout(context.Background(),
		100*time.Millisecond)
	defer cancel()

	p := NewOutboundPeer(testConfig(), addr)
	start := time.Now()
	err := p.Handshake(ctx)
	p.Disconnect()
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.Less(t, int64(time.Since(start)), int64(5*time.Second))
	require.Equal(t, StateFailed, p.State())
}

func TestHandshakeNonceError(t *testing.T) {
	addr, _ := startRemote(t, func(r *remote) error {
		_, err := r.read(&wire.MsgVersion{})
		return err
	})

	errNoEntropy := errors.New("no entropy")
	cfg := testConfig()
	cfg.NewNonce = func() (uint64, error) { return 0, errNoEntropy }

	p := NewOutboundPeer(cfg, addr)
	err := p.Handshake(context.Background())
	p.Disconnect()
	require.True(t, errors.Is(err, errNoEntropy), "got %v", err)
	require.Zero(t, p.BytesSent())
}

func TestStateStringer(t *testing.T) {
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "awaiting version", StateAwaitingVersion.String())
	require.Equal(t, "awaiting verack", StateAwaitingVerAck.String())
	require.Equal(t, "complete", StateComplete.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "Unknown State (42)", State(42).String())
}
