package main

import (
	"os"

	"github.com/netbirdio/updater/management/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
