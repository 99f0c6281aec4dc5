package wire

import (
	"fmt"
	"io"
	"strings"

	btcdwire "github.com/btcsuite/btcd/wire"
)

// MagicSize is the number of bytes of the network magic at the start of
// every message.
const MagicSize = 4

// BitcoinNet represents which bitcoin network a message belongs to.  The
// value is the network magic read as a little endian uint32, so MainNet is
// the byte sequence f9 be b4 d9 on the wire.
type BitcoinNet uint32

// Constants used to indicate the message bitcoin network.  They can also be
// used to seek to the next message when a stream's state is unknown, so
// decoding only ever accepts an exact match.
const (
	// MainNet represents the main bitcoin network.
	MainNet = BitcoinNet(btcdwire.MainNet)

	// RegNet represents the regression test network.
	RegNet = BitcoinNet(btcdwire.TestNet)

	// TestNet3 represents the test network (version 3).
	TestNet3 = BitcoinNet(btcdwire.TestNet3)

	// SigNet represents the default public signet.
	SigNet BitcoinNet = 0x40cf030a

	// Namecoin represents the namecoin main network.
	Namecoin BitcoinNet = 0xfeb4bef9
)

// bnStrings is a map of bitcoin networks back to their names.
var bnStrings = map[BitcoinNet]string{
	MainNet:  "mainnet",
	RegNet:   "regnet",
	TestNet3: "testnet3",
	SigNet:   "signet",
	Namecoin: "namecoin",
}

// String returns the BitcoinNet in human-readable form.
func (n BitcoinNet) String() string {
	if s, ok := bnStrings[n]; ok {
		return s
	}

	return fmt.Sprintf("Unknown BitcoinNet (%d)", uint32(n))
}

// IsKnown returns whether n is one of the supported networks.
func (n BitcoinNet) IsKnown() bool {
	_, ok := bnStrings[n]
	return ok
}

// Magic returns the four magic bytes that open every message of the
// network.
func (n BitcoinNet) Magic() [MagicSize]byte {
	var magic [MagicSize]byte
	littleEndian.PutUint32(magic[:], uint32(n))
	return magic
}

// Encode writes the network magic to w.
func (n BitcoinNet) Encode(w io.Writer) error {
	magic := n.Magic()
	_, err := w.Write(magic[:])
	return err
}

// DecodeBitcoinNet reads four bytes from r and returns the network whose
// magic they are.  A value matching no known network is an
// ErrUnknownMagicValue error.
func DecodeBitcoinNet(r io.Reader) (BitcoinNet, error) {
	var magic [MagicSize]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, err
	}

	net := BitcoinNet(littleEndian.Uint32(magic[:]))
	if !net.IsKnown() {
		str := fmt.Sprintf("unknown magic value %x", magic)
		return 0, messageError("DecodeBitcoinNet", ErrUnknownMagicValue, str)
	}
	return net, nil
}

// ParseBitcoinNet returns the network with the given name.
func ParseBitcoinNet(name string) (BitcoinNet, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for net, s := range bnStrings {
		if s == name {
			return net, nil
		}
	}
	return 0, fmt.Errorf("unknown bitcoin network %q", name)
}

// UnmarshalFlag parses a network name given on the command line.
func (n *BitcoinNet) UnmarshalFlag(value string) error {
	net, err := ParseBitcoinNet(value)
	if err != nil {
		return err
	}
	*n = net
	return nil
}

// MarshalFlag returns the name of the network for command line help.
func (n BitcoinNet) MarshalFlag() (string, error) {
	if !n.IsKnown() {
		return "", fmt.Errorf("unknown bitcoin network %d", uint32(n))
	}
	return n.String(), nil
}
