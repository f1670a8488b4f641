// Command harness checks the integration targets and serves harness metrics.
package main

import (
	"fmt"
	"os"

	"github.com/gaborage/go-bricks-harness/config"
)

func main() {
	if err := newRootCommand(config.OSEnviron()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
