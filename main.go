package main

import (
	"context"
	"fmt"
	"os"

	"github.com/smazurov/tracknode/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	root.SetArgs(cmd.StripPlatformArgs(os.Args[1:]))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
