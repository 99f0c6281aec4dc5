package wire

import (
	"fmt"
	"io"
	"net"
	"strconv"
)

// NetAddressSize is the number of bytes of an encoded NetAddress: 8 bytes
// services, 16 bytes ip and 2 bytes port.
const NetAddressSize = 26

// NetAddress defines information about a peer on the network including the
// services it supports, its IP address, and port.
type NetAddress struct {
	// Bitfield which identifies the services supported by the address.
	Services ServiceFlag

	// IP address of the peer.  Always the 16 byte form; IPv4 addresses are
	// held IPv4-mapped.
	IP net.IP

	// Port the peer is using.  This is encoded in big endian on the wire
	// which differs from most everything else.
	Port uint16
}

// HasService returns whether the specified service is supported by the
// address.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

// String returns the address in host:port form.
func (na *NetAddress) String() string {
	return net.JoinHostPort(na.IP.String(), strconv.Itoa(int(na.Port)))
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP, port,
// and supported services.  IPv4 addresses are stored in their IPv4-mapped
// IPv6 form.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	ip16 := ip.To16()
	if ip16 == nil {
		ip16 = net.IPv6unspecified
	}
	return &NetAddress{
		Services: services,
		IP:       append(net.IP(nil), ip16...),
		Port:     port,
	}
}

// NewNetAddress returns a new NetAddress using the provided address and
// supported services.  Addresses other than *net.TCPAddr must be in
// host:port form with a literal IP host.
func NewNetAddress(addr net.Addr, services ServiceFlag) (*NetAddress, error) {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return NewNetAddressIPPort(tcpAddr.IP, uint16(tcpAddr.Port),
			services), nil
	}

	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("address %q has no literal IP", addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}
	return NewNetAddressIPPort(ip, uint16(port), services), nil
}

// Encode writes the address to w.
func (na *NetAddress) Encode(w io.Writer) error {
	ip := na.IP.To16()
	if ip == nil {
		ip = net.IPv6unspecified
	}

	if err := writeUint64(w, littleEndian, uint64(na.Services)); err != nil {
		return err
	}
	if _, err := w.Write(ip); err != nil {
		return err
	}
	return writeUint16(w, bigEndian, na.Port)
}

// Decode reads an address from r.  Service bits unknown to this package are
// dropped.
func (na *NetAddress) Decode(r io.Reader) error {
	services, err := readUint64(r, littleEndian)
	if err != nil {
		return err
	}

	ip := make(net.IP, net.IPv6len)
	if _, err := io.ReadFull(r, ip); err != nil {
		return err
	}

	port, err := readUint16(r, bigEndian)
	if err != nil {
		return err
	}

	na.Services = ServiceFlag(services).Truncate()
	na.IP = ip
	na.Port = port
	return nil
}

// readNetAddress reads a fixed size address.  A short read is reported as
// an ErrInvalidEncoding error.
func readNetAddress(f string, r io.Reader, field string) (NetAddress, error) {
	var na NetAddress
	err := na.Decode(r)
	return na, truncated(f, field, err)
}
