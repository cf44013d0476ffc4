package main

import (
	"fmt"
	"log/slog"
	"os"
)

// readObjectFile reads a single .rel relocatable object from disk and parses
// it into a module.
func readObjectFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseObject(path, string(data))
}

// readLibrary reads a .lib archive from disk and parses every object member
// into a module. Non-object members are skipped.
func readLibrary(path string, log *slog.Logger) ([]*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return readArchive(path, data, log)
}
