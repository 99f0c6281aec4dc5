package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
)

var parser = flags.NewParser(nil, flags.Default)

// handshakeMain is the real main function of the handshake command.  It is
// necessary to work around the fact that deferred functions do not run when
// os.Exit() is called.
func handshakeMain(cfg *config, seed string) error {
	// Load configuration.  This function also initializes logging and
	// configures it accordingly.
	if err := loadConfig(cfg); err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Abandon every pending handshake on SIGINT (Ctrl+C).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		select {
		case <-interrupt:
			hshkLog.Infof("Received signal (%s).  Abandoning pending "+
				"handshakes...", os.Interrupt)
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := handshakeSeed(ctx, cfg, seed); err != nil {
		hshkLog.Errorf("Unable to perform handshakes: %v", err)
		return err
	}
	return nil
}

func main() {
	parser.AddCommand("handshake",
		"perform the handshake with nodes from a DNS seed",
		"The handshake command resolves the DNS seed and performs the "+
			"version/verack handshake with every node found, concurrently "+
			"and each within the timeout.  The success and failure counts "+
			"are logged once every attempt has finished.\n\n"+
			"Examples:\n"+
			"> btchandshake handshake seed.bitcoin.sipa.be\n"+
			"> btchandshake handshake -c testnet3 -p 18333 testnet-seed.bitcoin.jonasschnelli.ch\n",
		&handshakeCmd)
	parser.AddCommand("version",
		"print the version",
		"The version command prints the application version",
		&versionCmd)

	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
