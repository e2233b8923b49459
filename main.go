// tcpdrv drives a single TCP connection from the command line: send a
// payload, or accept one peer and dump what it sends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tcpdriver/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tcpdrv: %v\n", err)
		os.Exit(1)
	}
}
