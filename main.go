package main

import "github.com/schovi/interactive/cmd"

func main() {
	cmd.Execute()
}
