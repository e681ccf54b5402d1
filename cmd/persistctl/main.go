/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command persistctl inspects persistkit side-tables and index map files.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
