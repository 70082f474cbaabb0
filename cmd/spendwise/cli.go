// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API together with the bank sync loop"`
	Sync    SyncCmd    `cmd:"" help:"Run only the bank sync loop"`
	Chat    ChatCmd    `cmd:"" help:"Run a single chat turn from the terminal"`
	Version VersionCmd `cmd:"" help:"Show version information (${version})"`
}

// ServeCmd runs the API server and the reconciler.
type ServeCmd struct {
	Config string `help:"Config file path"`
	Addr   string `help:"Listen address (overrides config)"`
}

// SyncCmd runs the reconciler on its own.
type SyncCmd struct {
	Config string `help:"Config file path"`
	Once   bool   `help:"Run one cycle and exit"`
}

// ChatCmd runs one orchestrator turn.
type ChatCmd struct {
	Config      string `help:"Config file path"`
	Message     string `short:"m" required:"" help:"User message"`
	AutoApprove bool   `help:"Grant all manifest permissions without prompting"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
