package main

import "github.com/pianohome/keynote-bridge/cmd/keynote-bridge/cmd"

func main() {
	cmd.Execute()
}
