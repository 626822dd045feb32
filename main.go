package main

import "github.com/agentic-research/tagfs/cmd"

func main() {
	cmd.Execute()
}
