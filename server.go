package main

import (
	"context"
	"sort"

	"github.com/ke-chain/btchandshake/connmgr"
	"github.com/ke-chain/btchandshake/peer"
)

// newManagerConfig returns the connmgr configuration for the options.
func newManagerConfig(cfg *config) *connmgr.Config {
	return &connmgr.Config{
		Peer: peer.Config{
			ChainNet:                     cfg.Chain,
			Services:                     cfg.Services,
			RemoteServices:               cfg.ReceivingServices,
			ProtocolVersion:              peer.MaxProtocolVersion,
			MinAcceptableProtocolVersion: cfg.MinVersion,
		},
		Timeout:       cfg.Timeout,
		MaxSentNonces: connmgr.DefaultMaxSentNonces,
	}
}

// handshakeSeed performs the handshake with every node the DNS seed
// resolves to and logs the tally.
func handshakeSeed(ctx context.Context, cfg *config, seed string) (*connmgr.Summary, error) {
	mgr, err := connmgr.New(newManagerConfig(cfg))
	if err != nil {
		return nil, err
	}

	hshkLog.Infof("Performing handshakes with nodes from %s on %v (port %d, "+
		"timeout %v)", seed, cfg.Chain, cfg.Port, cfg.Timeout)
	summary, err := mgr.HandshakeSeed(ctx, seed, cfg.Port)
	if err != nil {
		return nil, err
	}

	logSummary(summary)
	return summary, nil
}

// logSummary logs the success and failure counts of a batch and the number
// of failures per reason.
func logSummary(summary *connmgr.Summary) {
	hshkLog.Infof("Handshake Success Count: %d", summary.Successes)
	hshkLog.Infof("Handshake Failure Count: %d", summary.Failures)

	reasons := summary.FailureReasons()
	sorted := make([]connmgr.FailureReason, 0, len(reasons))
	for reason := range reasons {
		sorted = append(sorted, reason)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, reason := range sorted {
		hshkLog.Infof("  %v: %d", reason, reasons[reason])
	}
}
