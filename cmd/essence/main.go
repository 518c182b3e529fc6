package main

import (
	"os"

	"github.com/phillarmonic/essence/cmd/essence/app"
)

// Version information (set at build time via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	a := app.NewApp(version, commit, date)
	os.Exit(a.Execute())
}
