package main

import (
	"fmt"
)

// handshakeCommand performs the handshake with every node a DNS seed
// resolves to.
type handshakeCommand struct {
	config

	Args struct {
		DNSSeed string `positional-arg-name:"dns-seed" description:"Bitcoin DNS seed that is queried"`
	} `positional-args:"yes" required:"yes"`
}

var handshakeCmd handshakeCommand

func (x *handshakeCommand) Execute(args []string) error {
	err := handshakeMain(&x.config, x.Args.DNSSeed)
	if err == errShowSubsystems {
		return nil
	}
	return err
}

type versionCommand struct{}

var versionCmd versionCommand

func (x *versionCommand) Execute(args []string) error {
	fmt.Printf("btchandshake version %s\n", version())
	return nil
}
