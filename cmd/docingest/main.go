// Package main provides the entry point for the docingest CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/docingest/cmd/docingest/cmd"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, ierrors.FormatForCLI(err))
		os.Exit(1)
	}
}
