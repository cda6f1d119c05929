package main

import "github.com/skorokithakis/dmake/internal/cli"

func main() {
	cli.Execute()
}
