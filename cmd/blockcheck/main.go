package main

import (
	"fmt"
	"os"

	"blockcheck/cmd/blockcheck/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
