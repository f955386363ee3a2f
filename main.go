package main

import "prompt-studio/cmd"

func main() {
	cmd.Execute()
}
