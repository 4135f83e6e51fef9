// Command pagegen turns page sketches into a single-file React application by
// running the planner, editor and reviewer workflow against a reasoning service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
