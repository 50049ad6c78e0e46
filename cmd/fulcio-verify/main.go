package main

import (
	"os"

	"github.com/containers/fulcio-verify/cmd/fulcio-verify/cli"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		os.Exit(1)
	}
}
