package main

import (
	"os"

	"github.com/yukikurage/taskboard/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
