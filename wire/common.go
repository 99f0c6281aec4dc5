package wire

import (
	"encoding/binary"
	"io"
)

// Payload is an interface that describes the body of a bitcoin message.  A
// type that implements Payload has complete control over the representation
// of its data.  Decode must consume exactly the bytes it needs from r.
type Payload interface {
	// Command returns the protocol command string of the payload.
	Command() string

	// Encode writes the wire representation of the payload to w.
	Encode(w io.Writer) error

	// Decode reads the wire representation of the payload from r into the
	// receiver.
	Decode(r io.Reader) error
}

// littleEndian is a convenience variable since binary.LittleEndian is
// quite long.
var littleEndian = binary.LittleEndian

// bigEndian is a convenience variable since binary.BigEndian is quite long.
var bigEndian = binary.BigEndian

func readUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readUint16(r io.Reader, order binary.ByteOrder) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return order.Uint16(b[:]), nil
}

func readUint32(r io.Reader, order binary.ByteOrder) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return order.Uint32(b[:]), nil
}

func readUint64(r io.Reader, order binary.ByteOrder) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return order.Uint64(b[:]), nil
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeUint16(w io.Writer, order binary.ByteOrder, v uint16) error {
	var b [2]byte
	order.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, order binary.ByteOrder, v uint32) error {
	var b [4]byte
	order.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, order binary.ByteOrder, v uint64) error {
	var b [8]byte
	order.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}
