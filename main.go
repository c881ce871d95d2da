package main

import (
	"github.com/portmirror/portmirror/cmd"
	"github.com/portmirror/portmirror/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
