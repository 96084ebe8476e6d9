package main

import (
	"os"

	"github.com/kubestrap/kubestrap/cmd/kubestrap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
