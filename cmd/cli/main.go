package main

import "robotbridge/cmd/cli/command"

func main() {
	command.Execute()
}
