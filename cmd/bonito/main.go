package main

import (
	"log"

	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func main() {
	cleanup := grail.Init()
	defer cleanup()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "bonito",
		Short:    "Tools for basecalling nanopore signal dumps",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdCall(),
			newCmdSimulate(),
		},
	})
}
