package connmgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoAddresses is returned when a seed resolves to no address at all.
var ErrNoAddresses = errors.New("seed resolved to no addresses")

// LookupFunc resolves a host name to the textual form of its IP
// addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// ResolveSeed queries lookup for host and returns one host:port address per
// distinct IP, in the order the resolver returned them.
func ResolveSeed(ctx context.Context, lookup LookupFunc, host string,
	port uint16) ([]string, error) {

	ips, err := lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", host, err)
	}

	portStr := strconv.Itoa(int(port))
	seen := make(map[string]struct{}, len(ips))
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		// Normalise so an IPv4 address and its mapped form collapse.
		if parsed := net.ParseIP(ip); parsed != nil {
			ip = parsed.String()
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		addrs = append(addrs, net.JoinHostPort(ip, portStr))
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAddresses, host)
	}

	log.Debugf("%d addresses found from DNS seed %s", len(addrs), host)
	return addrs, nil
}
