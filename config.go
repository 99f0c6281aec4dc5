package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/ke-chain/btchandshake/peer"
	"github.com/ke-chain/btchandshake/wire"
)

const (
	defaultLogDirname  = "logs"
	defaultLogFilename = "btchandshake.log"
)

var (
	defaultHomeDir = btcutil.AppDataDir("btchandshake", false)
	defaultLogDir  = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for the handshake command.
//
// See loadConfig for details on the configuration load process.
type config struct {
	Chain             wire.BitcoinNet  `short:"c" long:"chain" default:"mainnet" description:"The bitcoin network to connect to {mainnet, regnet, testnet3, signet, namecoin}"`
	Port              uint16           `short:"p" long:"port" default:"8333" description:"Port number of the receiving nodes"`
	Services          wire.ServiceFlag `short:"s" long:"services" default:"0" description:"Services supported by the transmitting node encoded as a 64-bit bitfield"`
	ReceivingServices wire.ServiceFlag `short:"r" long:"receiving-services" default:"0" description:"Services supported by the receiving node encoded as a 64-bit bitfield"`
	Timeout           time.Duration    `short:"t" long:"timeout" default:"10s" description:"Maximum duration to perform each handshake in"`
	MinVersion        int32            `long:"minversion" default:"209" description:"Lowest protocol version accepted from a peer"`
	LogDir            string           `long:"logdir" description:"Directory to log output."`
	DebugLevel        string           `short:"d" long:"debuglevel" default:"info" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
}

// errShowSubsystems is returned by loadConfig when the subsystems were listed
// and nothing else should be done.
var errShowSubsystems = errors.New("subsystems listed")

// loadConfig validates the parsed command line options and applies them.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Parse CLI options and overwrite/add any specified options
// 	3) Validate the options and initialize logging
//
// The above results in the tool functioning properly without any options
// while still allowing the user to override settings on the command line.
func loadConfig(cfg *config) error {
	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		return errShowSubsystems
	}

	if !cfg.Chain.IsKnown() {
		return fmt.Errorf("loadConfig: unknown chain %v", cfg.Chain)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("loadConfig: the timeout must be positive, "+
			"got %v", cfg.Timeout)
	}
	if cfg.MinVersion < 0 || cfg.MinVersion > peer.MaxProtocolVersion {
		return fmt.Errorf("loadConfig: the minimum protocol version must "+
			"be between 0 and %d, got %d", peer.MaxProtocolVersion,
			cfg.MinVersion)
	}

	// Unknown service bits are dropped, as they are on the wire.
	cfg.Services = cfg.Services.Truncate()
	cfg.ReceivingServices = cfg.ReceivingServices.Truncate()

	if cfg.LogDir == "" {
		cfg.LogDir = defaultLogDir
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	// Initialize log rotation.  After log rotation has been initialized, the
	// logger variables may be used.
	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename)); err != nil {
		return err
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return fmt.Errorf("loadConfig: %v", err)
	}

	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to the current user's home directory.
	if strings.HasPrefix(path, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
