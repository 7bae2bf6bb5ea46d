// Package main is the entry point for the sigparse rule validator.
package main

import (
	"fmt"
	"os"

	"github.com/afonot/suricata/cmd"
	_ "github.com/afonot/suricata/internal/detect/keywords" // register built-in keywords
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
