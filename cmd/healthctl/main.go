// Package main provides the entry point for the healthctl operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
