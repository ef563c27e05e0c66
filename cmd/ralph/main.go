package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/ralph/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		var exit *cmd.ExitError
		if errors.As(err, &exit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", exit.Err)
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
