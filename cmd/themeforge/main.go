package main

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/themeforge/pkg/cli"
)

func main() {
	env := cli.DefaultEnv()
	rootCmd := cli.NewRootCommand(env)

	if err := rootCmd.Execute(context.Background(), os.Args[1:], env.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
