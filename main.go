package main

import "peerdex/cmd"

func main() {
	cmd.Execute()
}
