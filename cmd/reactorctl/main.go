package main

import "github.com/goliatone/go-reactor/cmd/reactorctl/cmd"

func main() {
	cmd.Execute()
}
