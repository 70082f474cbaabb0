package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Load .env for API keys and local overrides.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("spendwise"),
		kong.Description("Personal finance assistant with sandboxed agents"),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
