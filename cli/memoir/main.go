package main

import (
	"fmt"
	"os"

	memoircmder "github.com/papercomputeco/memoir/cmd/memoir"
)

func main() {
	cmd := memoircmder.NewMemoirCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
