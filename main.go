package main

import "github.com/courselab/server/cmd"

func main() {
	cmd.Execute()
}
