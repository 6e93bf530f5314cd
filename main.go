// Superlinks - command-line client for a creator storefront.
//
// Build with version information:
//
//	go build -ldflags "-X github.com/chinmay4o/superlinks/internal/version.Version=v0.4.0 \
//	  -X github.com/chinmay4o/superlinks/internal/version.BuildTime=$(date -u +%Y-%m-%d)"
package main

import (
	"os"

	"github.com/chinmay4o/superlinks/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
