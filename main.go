package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gigshield/reviewcore/cmd"
	"github.com/gigshield/reviewcore/internal/buildinfo"
)

func main() {
	root := cmd.RootCommand(buildinfo.Current())
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "reviewcore: %v\n", err)
		os.Exit(1)
	}
}
