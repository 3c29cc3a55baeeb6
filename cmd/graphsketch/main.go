package main

import "graphsketch/cmd/graphsketch/commands"

func main() {
	commands.Execute()
}
