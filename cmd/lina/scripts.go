package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var errNoSource = errors.New("expected exactly one program file")

// loadSource reads a program from path, or from stdin when path is "-".
func loadSource(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read program: %w", err)
	}
	return string(b), nil
}

func sourceArg(args []string) (string, string, error) {
	if len(args) != 1 {
		return "", "", errNoSource
	}
	src, err := loadSource(args[0])
	if err != nil {
		return "", "", err
	}
	return args[0], src, nil
}
