// Command sonicctl talks to a running sonicweb server.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCmd()
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
