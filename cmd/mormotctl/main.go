// Command mormotctl logs in to a mORMot server and keeps the session in
// Redis so later invocations can sign requests and call services with it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errFmt("Error:"), err)
		os.Exit(1)
	}
}
