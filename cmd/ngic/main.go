package main

import (
	"fmt"
	"os"

	"github.com/drhuang0922/ngic/internal/app"
	"github.com/drhuang0922/ngic/internal/logging"
)

func main() {
	err := app.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
