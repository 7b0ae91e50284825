package main

import (
	"os"

	"github.com/molsim/dockenergy/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
