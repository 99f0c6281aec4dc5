package wire

import (
	"bytes"
	"fmt"
	"io"
)

// CommandSize is the fixed size of all commands in the common bitcoin
// message header.  Shorter commands must be zero padded.
const CommandSize = 12

// MessageHeaderSize is the number of bytes in a bitcoin message header.
// Bitcoin network (magic) 4 bytes + command 12 bytes + payload length 4 bytes
// + checksum 4 bytes.
const MessageHeaderSize = MagicSize + CommandSize + 4 + ChecksumSize

// MaxPayloadSize is the maximum bytes a message payload can be.
const MaxPayloadSize = 32 * 1024 * 1024

// Commands used in bitcoin message headers which describe the type of
// message.
const (
	CmdVersion = "version"
	CmdVerAck  = "verack"
)

// Message is a framed bitcoin message: the network it belongs to and its
// payload.  Decoding requires Payload to be set to a value of the expected
// type, which the frame body is decoded into.
type Message struct {
	Net     BitcoinNet
	Payload Payload
}

// NewMessage returns a message of the given network wrapping payload.
func NewMessage(net BitcoinNet, payload Payload) *Message {
	return &Message{Net: net, Payload: payload}
}

// Bytes returns the complete wire frame of the message.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the complete frame of the message to w: magic, zero padded
// command, little endian payload length, checksum and payload.  Nothing is
// written when the payload cannot be encoded or exceeds MaxPayloadSize.
func (m *Message) Encode(w io.Writer) error {
	const f = "Message.Encode"

	cmd, err := commandBytes(f, m.Payload.Command())
	if err != nil {
		return err
	}

	var bw bytes.Buffer
	if err := m.Payload.Encode(&bw); err != nil {
		return err
	}
	payload := bw.Bytes()
	lenp := len(payload)

	if lenp > MaxPayloadSize {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp, MaxPayloadSize)
		return messageError(f, ErrPayloadTooBig, str)
	}

	frame := make([]byte, 0, MessageHeaderSize+lenp)
	magic := m.Net.Magic()
	frame = append(frame, magic[:]...)
	frame = append(frame, cmd[:]...)
	var lenBuf [4]byte
	littleEndian.PutUint32(lenBuf[:], uint32(lenp))
	frame = append(frame, lenBuf[:]...)
	checksum := Checksum(payload)
	frame = append(frame, checksum[:]...)
	frame = append(frame, payload...)

	_, err = w.Write(frame)
	return err
}

// Decode reads exactly one frame from r into the receiver.  The checks run
// in wire order and stop at the first failure: magic, command, payload
// length bound, checksum and finally the payload's own decoding.  No more
// than MaxPayloadSize payload bytes are ever read.
//
// A stream ending before the frame does is an ErrInvalidEncoding error
// wrapping io.EOF or io.ErrUnexpectedEOF.
func (m *Message) Decode(r io.Reader) error {
	const f = "Message.Decode"

	if m.Payload == nil {
		return fmt.Errorf("%s: no payload to decode into", f)
	}

	net, err := DecodeBitcoinNet(r)
	if err != nil {
		return truncated(f, "magic", err)
	}

	var command [CommandSize]byte
	if _, err := io.ReadFull(r, command[:]); err != nil {
		return truncated(f, "command", err)
	}
	want, err := commandBytes(f, m.Payload.Command())
	if err != nil {
		return err
	}
	if command != want {
		str := fmt.Sprintf("received command %q, expected %q",
			bytes.TrimRight(command[:], "\x00"), m.Payload.Command())
		return messageError(f, ErrCommandNameUnknown, str)
	}

	length, err := readUint32(r, littleEndian)
	if err != nil {
		return truncated(f, "payload length", err)
	}
	if length > MaxPayloadSize {
		str := fmt.Sprintf("message payload is too large - header "+
			"indicates %d bytes, but max message payload is %d "+
			"bytes.", length, MaxPayloadSize)
		return messageError(f, ErrPayloadTooBig, str)
	}

	var checksum [ChecksumSize]byte
	if _, err := io.ReadFull(r, checksum[:]); err != nil {
		return truncated(f, "checksum", err)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return truncated(f, "payload", err)
	}

	if sum := Checksum(payload); sum != checksum {
		str := fmt.Sprintf("payload checksum failed - header "+
			"indicates %x, but actual checksum is %x.",
			checksum, sum)
		return messageError(f, ErrChecksumInvalid, str)
	}

	if err := m.Payload.Decode(bytes.NewReader(payload)); err != nil {
		return err
	}
	m.Net = net
	return nil
}

// commandBytes returns cmd zero padded to CommandSize bytes.
func commandBytes(f string, cmd string) ([CommandSize]byte, error) {
	var command [CommandSize]byte
	if len(cmd) > CommandSize {
		str := fmt.Sprintf("command [%s] is too long [max %v]",
			cmd, CommandSize)
		return command, messageError(f, ErrInvalidEncoding, str)
	}
	copy(command[:], cmd)
	return command, nil
}
