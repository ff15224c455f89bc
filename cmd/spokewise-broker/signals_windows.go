//go:build windows

package main

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/rs/zerolog"
)

func notifySignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

func printSignalHelp(w io.Writer) {
	fmt.Fprintln(w, "Signals: none beyond interrupt/terminate on this platform")
}

func handleSignal(os.Signal, zerolog.Logger, *metricsController) bool {
	return false
}
