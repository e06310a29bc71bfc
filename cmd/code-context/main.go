package main

import (
	"fmt"
	"os"

	"github.com/tan-yong-sheng/code-context/cmd/code-context/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
