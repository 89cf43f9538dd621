package main

import (
	"os"

	"lichsu-rewards-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
