package main

import "github.com/mcoot/racecoord/internal/cli"

func main() {
	cli.Execute()
}
