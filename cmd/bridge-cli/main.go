package main

import "github.com/pandodao/token-bridge/cmd/bridge-cli/cmd"

func main() {
	cmd.Execute()
}
