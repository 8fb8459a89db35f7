package main

import (
	"os"

	"github.com/formwatch/formwatch/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
