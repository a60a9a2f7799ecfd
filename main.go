package main

import (
	"fmt"
	"os"

	"github.com/holdr-fi/quest-n-script/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
