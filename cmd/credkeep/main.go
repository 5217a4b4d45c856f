package main

import "github.com/credkeep/credkeep/cmd/credkeep/cmd"

func main() {
	cmd.Execute()
}
