package main

import "github.com/aponysus/smartretry/internal/cli"

func main() {
	cli.Execute()
}
