// Package main is the entry point for kgcpd, the control-plane server:
// HTTP API, broker-event consumer, and transaction store under one CLI.
package main

import (
	"log"
	"os"

	"kgcp.evalgo.org/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}
