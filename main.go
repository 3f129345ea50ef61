// telemetryd - a single-threaded TCP/UDP echo and command server.
package main

import (
	"context"
	"fmt"
	"os"

	"telemetry/cmd"
)

func main() {
	if err := cmd.Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "telemetryd: %v\n", err)
		os.Exit(1)
	}
}
