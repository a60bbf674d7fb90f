package main

import "pedex/cmd/pedex/cmd"

func main() {
	cmd.Execute()
}
