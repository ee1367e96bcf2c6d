// tawqa is a netcat-style TCP/UDP connection tool.
package main

import (
	"context"
	"fmt"
	"os"

	"tawqa/cmd"
)

func main() {
	if err := cmd.Execute(context.Background(), os.Args[1:]); err != nil {
		if !cmd.Reported(err) {
			fmt.Fprintf(os.Stderr, "tawqa: %v\n", err)
		}
		os.Exit(1)
	}
}
