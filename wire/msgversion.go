package wire

import (
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field in
// a version message (MsgVersion).  Its length prefix is a single byte.
const MaxUserAgentLen = 255

// minVersionPayload is the size of a version message with an empty user
// agent.
const minVersionPayload = 85

// MsgVersion implements the Payload interface and represents a bitcoin
// version message.  It is used for a peer to advertise itself as soon as an
// outbound connection is made.  The remote peer then uses this information
// along with its own to negotiate.  The remote peer must then respond with a
// version message of its own containing the negotiated values followed by a
// verack message (MsgVerAck).  This exchange must take place before any
// further communication is allowed to proceed.
type MsgVersion struct {
	// Version of the protocol the node is using.
	ProtocolVersion int32

	// Bitfield which identifies the enabled services.
	Services ServiceFlag

	// Time the message was generated.  This is encoded as an int64 on the
	// wire.
	Timestamp time.Time

	// Address of the remote peer.
	AddrYou NetAddress

	// Address of the local peer.
	AddrMe NetAddress

	// Unique value associated with message that is used to detect self
	// connections.
	Nonce uint64

	// The user agent that generated message.  This is encoded as a one
	// byte length followed by the raw bytes.
	UserAgent string

	// Last block seen by the generator of the version message.
	StartHeight int32

	// Whether the remote peer should announce relayed transactions.
	Relay bool
}

// HasService returns whether the specified service is supported by the peer
// that generated the message.
func (msg *MsgVersion) HasService(service ServiceFlag) bool {
	return msg.Services&service == service
}

// AddService adds service as a supported service by the peer generating the
// message.
func (msg *MsgVersion) AddService(service ServiceFlag) {
	msg.Services |= service
}

// SetUserAgent sets the user agent, rejecting one that does not fit in its
// one byte length prefix.
func (msg *MsgVersion) SetUserAgent(userAgent string) error {
	if err := validateUserAgent("MsgVersion.SetUserAgent", userAgent); err != nil {
		return err
	}
	msg.UserAgent = userAgent
	return nil
}

// SerializeSize returns the number of bytes the encoded message occupies.
func (msg *MsgVersion) SerializeSize() int {
	return minVersionPayload + len(msg.UserAgent)
}

// Command returns the protocol command string for the message.  This is
// part of the Payload interface implementation.
func (msg *MsgVersion) Command() string {
	return CmdVersion
}

// Encode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Payload interface implementation.
func (msg *MsgVersion) Encode(w io.Writer) error {
	err := validateUserAgent("MsgVersion.Encode", msg.UserAgent)
	if err != nil {
		return err
	}

	err = writeUint32(w, littleEndian, uint32(msg.ProtocolVersion))
	if err != nil {
		return err
	}
	err = writeUint64(w, littleEndian, uint64(msg.Services))
	if err != nil {
		return err
	}
	err = writeUint64(w, littleEndian, uint64(msg.Timestamp.Unix()))
	if err != nil {
		return err
	}
	if err = msg.AddrYou.Encode(w); err != nil {
		return err
	}
	if err = msg.AddrMe.Encode(w); err != nil {
		return err
	}
	if err = writeUint64(w, littleEndian, msg.Nonce); err != nil {
		return err
	}
	if err = writeUint8(w, uint8(len(msg.UserAgent))); err != nil {
		return err
	}
	if _, err = io.WriteString(w, msg.UserAgent); err != nil {
		return err
	}
	err = writeUint32(w, littleEndian, uint32(msg.StartHeight))
	if err != nil {
		return err
	}

	var relay uint8
	if msg.Relay {
		relay = 1
	}
	return writeUint8(w, relay)
}

// Decode decodes r using the bitcoin protocol encoding into the receiver.
// Bytes following the relay flag are left unread.  This is part of the
// Payload interface implementation.
func (msg *MsgVersion) Decode(r io.Reader) error {
	const f = "MsgVersion.Decode"

	version, err := readUint32(r, littleEndian)
	if err != nil {
		return truncated(f, "protocol version", err)
	}
	services, err := readUint64(r, littleEndian)
	if err != nil {
		return truncated(f, "services", err)
	}
	timestamp, err := readUint64(r, littleEndian)
	if err != nil {
		return truncated(f, "timestamp", err)
	}
	addrYou, err := readNetAddress(f, r, "receiving address")
	if err != nil {
		return err
	}
	addrMe, err := readNetAddress(f, r, "transmitting address")
	if err != nil {
		return err
	}
	nonce, err := readUint64(r, littleEndian)
	if err != nil {
		return truncated(f, "nonce", err)
	}

	uaLen, err := readUint8(r)
	if err != nil {
		return truncated(f, "user agent length", err)
	}
	ua := make([]byte, uaLen)
	if _, err := io.ReadFull(r, ua); err != nil {
		return truncated(f, "user agent", err)
	}
	if !utf8.Valid(ua) {
		return messageError(f, ErrInvalidEncoding,
			"user agent is not valid UTF-8")
	}

	startHeight, err := readUint32(r, littleEndian)
	if err != nil {
		return truncated(f, "start height", err)
	}

	relay, err := readUint8(r)
	if err != nil {
		return truncated(f, "relay flag", err)
	}
	if relay > 1 {
		str := fmt.Sprintf("relay flag %d is neither 0 nor 1", relay)
		return messageError(f, ErrInvalidEncoding, str)
	}

	*msg = MsgVersion{
		ProtocolVersion: int32(version),
		Services:        ServiceFlag(services).Truncate(),
		Timestamp:       time.Unix(int64(timestamp), 0),
		AddrYou:         addrYou,
		AddrMe:          addrMe,
		Nonce:           nonce,
		UserAgent:       string(ua),
		StartHeight:     int32(startHeight),
		Relay:           relay == 1,
	}
	return nil
}

// NewMsgVersion returns a new bitcoin version message that conforms to the
// Payload interface using the passed parameters and defaults for the
// remaining fields.
func NewMsgVersion(me *NetAddress, you *NetAddress, nonce uint64,
	startHeight int32) *MsgVersion {

	// Limit the timestamp to one second precision since the protocol
	// doesn't support better.
	return &MsgVersion{
		ProtocolVersion: ProtocolVersion,
		Services:        0,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrYou:         *you,
		AddrMe:          *me,
		Nonce:           nonce,
		UserAgent:       "",
		StartHeight:     startHeight,
		Relay:           false,
	}
}

func validateUserAgent(f string, userAgent string) error {
	if len(userAgent) > MaxUserAgentLen {
		str := fmt.Sprintf("user agent too long [len %v, max %v]",
			len(userAgent), MaxUserAgentLen)
		return messageError(f, ErrUserAgentTooLong, str)
	}
	return nil
}

// truncated converts a short read of a payload field into an
// ErrInvalidEncoding error.  Other read errors pass through unchanged.
func truncated(f string, field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return encodingError(f, "truncated "+field, err)
	}
	return err
}
