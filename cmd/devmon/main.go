package main

import (
	"github.com/tessland/devmon/internal/cli"
)

func main() {
	cli.Execute()
}
