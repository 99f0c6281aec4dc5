package wire

import (
	"fmt"
	"strings"
)

const (
	// ProtocolVersion is the latest protocol version this package supports.
	ProtocolVersion int32 = 70015

	// MultipleAddressVersion is the protocol version which added multiple
	// addresses per message (pver >= MultipleAddressVersion).
	MultipleAddressVersion int32 = 209

	// BIP0035Version is the protocol version which added the mempool
	// message (pver >= BIP0035Version).
	BIP0035Version int32 = 60002

	// BIP0037Version is the protocol version which added new connection
	// bloom filtering related messages and extended the version message
	// with a relay flag (pver >= BIP0037Version).
	BIP0037Version int32 = 70001

	// MainNetPort is the default port of peers on the main network.
	MainNetPort uint16 = 8333
)

// ServiceFlag identifies services supported by a bitcoin peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeGetUTXO is a flag used to indicate a peer supports the
	// getutxos and utxos commands (BIP0064).
	SFNodeGetUTXO

	// SFNodeBloom is a flag used to indicate a peer supports bloom
	// filtering.
	SFNodeBloom

	// SFNodeWitness is a flag used to indicate a peer supports blocks
	// and transactions including witness data (BIP0144).
	SFNodeWitness

	// SFNodeXthin is a flag used to indicate a peer supports xthin blocks.
	SFNodeXthin
)

// SFNodeCF is a flag used to indicate a peer supports committed filters
// (CFs).
const SFNodeCF ServiceFlag = 1 << 6

// SFNodeNetworkLimited is the same as SFNodeNetwork but the peer only
// guarantees the last 288 blocks (BIP0159).
const SFNodeNetworkLimited ServiceFlag = 1 << 10

// knownServices is the set of flags that survive decoding.  Unknown bits
// read off the wire are dropped.
const knownServices = SFNodeNetwork | SFNodeGetUTXO | SFNodeBloom |
	SFNodeWitness | SFNodeXthin | SFNodeCF | SFNodeNetworkLimited

// Map of service flags back to their constant names for pretty printing.
var sfStrings = map[ServiceFlag]string{
	SFNodeNetwork:        "SFNodeNetwork",
	SFNodeGetUTXO:        "SFNodeGetUTXO",
	SFNodeBloom:          "SFNodeBloom",
	SFNodeWitness:        "SFNodeWitness",
	SFNodeXthin:          "SFNodeXthin",
	SFNodeCF:             "SFNodeCF",
	SFNodeNetworkLimited: "SFNodeNetworkLimited",
}

// orderedSFStrings is an ordered list of service flags from highest to
// lowest.
var orderedSFStrings = []ServiceFlag{
	SFNodeNetwork,
	SFNodeGetUTXO,
	SFNodeBloom,
	SFNodeWitness,
	SFNodeXthin,
	SFNodeCF,
	SFNodeNetworkLimited,
}

// Truncate returns the flags with every bit outside the known set cleared.
func (f ServiceFlag) Truncate() ServiceFlag {
	return f & knownServices
}

// String returns the ServiceFlag in human-readable form.
func (f ServiceFlag) String() string {
	// No flags are set.
	if f == 0 {
		return "0x0"
	}

	// Add individual bit flags.
	var s []string
	for _, flag := range orderedSFStrings {
		if f&flag == flag {
			s = append(s, sfStrings[flag])
			f -= flag
		}
	}

	// Add any remaining flags which aren't accounted for as hex.
	if f != 0 {
		s = append(s, fmt.Sprintf("0x%x", uint64(f)))
	}
	return strings.Join(s, "|")
}
