package wire

import (
	"bytes"
	"net"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// TestNetAddress tests the NetAddress API.
func TestNetAddress(t *testing.T) {
	ip := net.ParseIP("127.0.0.1")
	port := 8333

	// Test NewNetAddress.
	na, err := NewNetAddress(&net.TCPAddr{IP: ip, Port: port}, 0)
	if err != nil {
		t.Fatalf("NewNetAddress: %v", err)
	}

	// Ensure we get the same ip, port, and services back out.
	if !na.IP.Equal(ip) {
		t.Errorf("NetNetAddress: wrong ip - got %v, want %v", na.IP, ip)
	}
	if len(na.IP) != net.IPv6len {
		t.Errorf("NetNetAddress: ip not in 16 byte form - got %d bytes",
			len(na.IP))
	}
	if na.Port != uint16(port) {
		t.Errorf("NetNetAddress: wrong port - got %v, want %v", na.Port,
			port)
	}
	if na.Services != 0 {
		t.Errorf("NetNetAddress: wrong services - got %v, want %v",
			na.Services, 0)
	}
	if na.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service is set")
	}

	// Ensure adding the full service node flag works.
	na.Services |= SFNodeNetwork
	if !na.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service not set")
	}
	if got := na.String(); got != "127.0.0.1:8333" {
		t.Errorf("String: got %q", got)
	}

	// Non TCP addresses are parsed from their string form.
	udp := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 18444}
	na, err = NewNetAddress(udp, SFNodeWitness)
	if err != nil {
		t.Fatalf("NewNetAddress(udp): %v", err)
	}
	if !na.IP.Equal(udp.IP) || na.Port != 18444 {
		t.Errorf("NewNetAddress(udp): got %v", na)
	}

	// Addresses without a literal IP are rejected.
	_, err = NewNetAddress(&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, 0)
	if err == nil {
		t.Errorf("NewNetAddress(unix): expected error")
	}
}

// TestNetAddressWire tests the NetAddress wire encode and decode.
func TestNetAddressWire(t *testing.T) {
	na := NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, SFNodeNetwork)
	naEncoded := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // SFNodeNetwork
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}

	var buf bytes.Buffer
	if err := na.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), naEncoded) {
		t.Fatalf("Encode\n got: %s want: %s", spew.Sdump(buf.Bytes()),
			spew.Sdump(naEncoded))
	}
	if buf.Len() != NetAddressSize {
		t.Fatalf("Encode: got %d bytes want %d", buf.Len(), NetAddressSize)
	}

	var decoded NetAddress
	if err := decoded.Decode(bytes.NewReader(naEncoded)); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(&decoded, na) {
		t.Fatalf("Decode\n got: %s want: %s", spew.Sdump(decoded),
			spew.Sdump(na))
	}
}

// TestNetAddressUnknownServices ensures service bits unknown to the package
// are cleared on decode instead of failing it.
func TestNetAddressUnknownServices(t *testing.T) {
	encoded := make([]byte, NetAddressSize)
	littleEndian.PutUint64(encoded, uint64(SFNodeNetwork|SFNodeWitness|1<<40|1<<5))

	var na NetAddress
	if err := na.Decode(bytes.NewReader(encoded)); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := SFNodeNetwork | SFNodeWitness; na.Services != want {
		t.Fatalf("Decode: got services %v want %v", na.Services, want)
	}
}

// TestServiceFlagStringer tests the stringized output for service flag
// types.
func TestServiceFlagStringer(t *testing.T) {
	tests := []struct {
		in   ServiceFlag
		want string
	}{
		{0, "0x0"},
		{SFNodeNetwork, "SFNodeNetwork"},
		{SFNodeGetUTXO, "SFNodeGetUTXO"},
		{SFNodeBloom, "SFNodeBloom"},
		{SFNodeWitness, "SFNodeWitness"},
		{SFNodeXthin, "SFNodeXthin"},
		{SFNodeCF, "SFNodeCF"},
		{SFNodeNetworkLimited, "SFNodeNetworkLimited"},
		{SFNodeNetwork | SFNodeWitness | SFNodeNetworkLimited,
			"SFNodeNetwork|SFNodeWitness|SFNodeNetworkLimited"},
		{1 << 5, "0x20"},
		{1 << 6, "SFNodeCF"},
		{1 << 4, "SFNodeXthin"},
		{0xffffffff, "SFNodeNetwork|SFNodeGetUTXO|SFNodeBloom|" +
			"SFNodeWitness|SFNodeXthin|SFNodeCF|SFNodeNetworkLimited|" +
			"0xfffffba0"},
	}

	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d\n got: %s want: %s", i, result,
				test.want)
		}
	}
}
