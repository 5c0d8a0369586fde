package main

import (
	"os"

	"github.com/pmhub/pmhub/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
