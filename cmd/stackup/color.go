package main

import (
	"os"

	"github.com/frievoe97/stackup/spec"
)

var colorEnabled = isTTY(os.Stdout)

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

func bold(s string) string {
	if !colorEnabled {
		return s
	}
	return ansiBold + s + ansiReset
}

func dim(s string) string {
	if !colorEnabled {
		return s
	}
	return ansiDim + s + ansiReset
}

// colorState colors a service status: green for the good outcomes, red for
// hard failures, yellow for the ones that are somebody else's fault.
func colorState(st spec.Status) string {
	s := string(st)
	if !colorEnabled {
		return s
	}
	switch st {
	case spec.StatusReady, spec.StatusStopped:
		return ansiGreen + s + ansiReset
	case spec.StatusFailed, spec.StatusStopFailed:
		return ansiRed + s + ansiReset
	case spec.StatusTimedOut, spec.StatusDependencyFailed:
		return ansiYellow + s + ansiReset
	case spec.StatusCancelled:
		return ansiDim + s + ansiReset
	}
	return s
}
