package main

import (
	"github.com/go-gouge/gouge/cmd/gouge/cmds"
	"github.com/go-gouge/gouge/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.GougeVersion.Build = Build
	}
	cmds.New(false).Execute()
}
