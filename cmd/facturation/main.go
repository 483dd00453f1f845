package main

import "github.com/diewo77/facturation/internal/cli"

func main() {
	cli.Execute()
}
