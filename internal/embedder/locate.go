package embedder

import (
	"fmt"
	"os/exec"
)

// DefaultWorkerName is looked up on PATH when no command is configured.
const DefaultWorkerName = "recall-embedder"

// LocatorFunc resolves the worker command line. It is called on every
// spawn, so a worker installed after startup is picked up.
type LocatorFunc func() (command string, args []string, err error)

// CommandLocator resolves command (or DefaultWorkerName) via PATH.
func CommandLocator(command string, args []string) LocatorFunc {
	return func() (string, []string, error) {
		name := command
		if name == "" {
			name = DefaultWorkerName
		}
		path, err := exec.LookPath(name)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrWorkerNotFound, err)
		}
		return path, append([]string(nil), args...), nil
	}
}

// Available reports whether locate currently finds a worker.
func Available(locate LocatorFunc) bool {
	if locate == nil {
		return false
	}
	_, _, err := locate()
	return err == nil
}
