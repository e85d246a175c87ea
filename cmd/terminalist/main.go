package main

import (
	"os"

	"github.com/dapp-whisperer/terminalist/cmd/terminalist/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
