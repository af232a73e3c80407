// poloniex-int - Rate-limited, signed command-line client for the Poloniex API
//
// Build with:
//
//	go build -ldflags "-X github.com/rescale/poloniex-int/internal/version.Version=v0.3.1 \
//	  -X github.com/rescale/poloniex-int/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/poloniex-int
package main

import (
	"os"

	"github.com/rescale/poloniex-int/internal/cli"
)

func main() {
	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
