package main

import (
	"github.com/mumoshu/runjob/cmd"
)

func main() {
	cmd.MustRun()
}
