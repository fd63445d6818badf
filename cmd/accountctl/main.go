package main

import (
	"os"

	"github.com/trading-account-engine/cmd/accountctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
