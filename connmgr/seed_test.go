package connmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedLookup(ips ...string) LookupFunc {
	return func(context.Context, string) ([]string, error) {
		return ips, nil
	}
}

func TestResolveSeed(t *testing.T) {
	tests := []struct {
		name string
		ips  []string
		port uint16
		want []string
	}{
		{
			name: "ipv4",
			ips:  []string{"1.2.3.4", "5.6.7.8"},
			port: 8333,
			want: []string{"1.2.3.4:8333", "5.6.7.8:8333"},
		},
		{
			name: "ipv6 bracketed",
			ips:  []string{"2001:db8::1"},
			port: 18333,
			want: []string{"[2001:db8::1]:18333"},
		},
		{
			name: "duplicates keep first position",
			ips:  []string{"5.6.7.8", "1.2.3.4", "5.6.7.8"},
			port: 8333,
			want: []string{"5.6.7.8:8333", "1.2.3.4:8333"},
		},
		{
			name: "mapped ipv4 collapses",
			ips:  []string{"1.2.3.4", "::ffff:1.2.3.4"},
			port: 8333,
			want: []string{"1.2.3.4:8333"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ResolveSeed(context.Background(),
				fixedLookup(test.ips...), "seed.example", test.port)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestResolveSeedLookupError(t *testing.T) {
	errNXDomain := errors.New("no such host")
	lookup := func(context.Context, string) ([]string, error) {
		return nil, errNXDomain
	}

	_, err := ResolveSeed(context.Background(), lookup, "seed.example", 8333)
	require.True(t, errors.Is(err, errNXDomain), "got %v", err)
	require.Contains(t, err.Error(), "seed.example")
}

func TestResolveSeedNoAddresses(t *testing.T) {
	_, err := ResolveSeed(context.Background(), fixedLookup(), "seed.example",
		8333)
	require.True(t, errors.Is(err, ErrNoAddresses), "got %v", err)
}
