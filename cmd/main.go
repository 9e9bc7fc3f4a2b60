package main

import (
	"gardi.app/cli/internal/interfaces/cli"
)

func main() {
	cli.Execute(cli.NewCLIContainer())
}
