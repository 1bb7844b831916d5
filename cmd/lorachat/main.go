package main

import "github.com/exepirit/lorachat/internal/cli"

func main() {
	cli.Execute()
}
