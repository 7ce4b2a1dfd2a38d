package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "fingerprint":
		return runFingerprint(args[2:])
	case "decrypt":
		return runDecrypt(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "meshwatch"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s fingerprint <key> [<key>...]\n", name)
	fmt.Fprintf(os.Stderr, "  %s decrypt --in <capture.ndjson> [--keys <key,key,...>] [--chat-only]\n", name)
}
