package main

import "poke-platform/internal/cli"

func main() {
	cli.Execute()
}
