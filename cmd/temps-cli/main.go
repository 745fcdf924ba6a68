package main

import (
	"os"

	"github.com/gotempsh/temps-cli/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
