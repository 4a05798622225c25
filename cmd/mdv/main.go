package main

import (
	"context"
	"os"

	"github.com/jwtly10/mdv/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
