package main

import (
	"context"
	"os"

	"github.com/vin-jex/queuectl/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
