package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Ask builds the CLI and answers the question in $Q.
func Ask() error {
	mg.Deps(Build)
	return sh.RunV("bin/answer-engine", "ask", os.Getenv("Q"))
}

// Search builds the CLI and runs a plain provider-chain search for $Q.
func Search() error {
	mg.Deps(Build)
	return sh.RunV("bin/answer-engine", "search", os.Getenv("Q"))
}

// Serve builds the CLI and starts the HTTP server.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV("bin/answer-engine", "serve")
}
