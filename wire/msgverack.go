package wire

import (
	"io"
)

// MsgVerAck defines a bitcoin verack message which is used for a peer to
// acknowledge a version message (MsgVersion) after it has used the
// information to negotiate parameters.  It implements the Payload interface.
//
// This message has no payload.
type MsgVerAck struct{}

// Decode decodes r using the bitcoin protocol encoding into the receiver.
// Any byte left in r is an ErrInvalidEncoding error.  This is part of the
// Payload interface implementation.
func (msg *MsgVerAck) Decode(r io.Reader) error {
	var b [1]byte
	n, err := r.Read(b[:])
	if n > 0 {
		return messageError("MsgVerAck.Decode", ErrInvalidEncoding,
			"verack message carries a payload")
	}
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Encode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Payload interface implementation.
func (msg *MsgVerAck) Encode(w io.Writer) error {
	return nil
}

// Command returns the protocol command string for the message.  This is
// part of the Payload interface implementation.
func (msg *MsgVerAck) Command() string {
	return CmdVerAck
}

// NewMsgVerAck returns a new bitcoin verack message that conforms to the
// Payload interface.
func NewMsgVerAck() *MsgVerAck {
	return &MsgVerAck{}
}
