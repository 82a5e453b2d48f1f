package main

import "github.com/forPelevin/chapcut/internal/cli"

func main() {
	cli.Main()
}
