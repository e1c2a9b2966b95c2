package main

import "github.com/global-done/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
