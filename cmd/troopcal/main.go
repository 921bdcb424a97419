package main

import "github.com/pfrederiksen/troopcal/internal/cli"

func main() {
	cli.Execute()
}
