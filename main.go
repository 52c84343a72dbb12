package main

import "github.com/mbs-build/mbs/cmd"

func main() {
	cmd.Execute()
}
