package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-repository-relation/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "relq:", err)
		os.Exit(1)
	}
}
