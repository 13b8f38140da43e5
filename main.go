package main

import (
	"github.com/indexcards/indexnet/cmd"
)

// Version is set via ldflags during build
var Version = "dev"

func main() {
	cmd.SetVersion(Version)
	cmd.Execute()
}
