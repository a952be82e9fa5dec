package main

import (
	"os"

	"totpattend/cmd/totpctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
