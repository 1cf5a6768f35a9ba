package main

import "nodectl/internal/cli"

func main() {
	cli.Execute()
}
