package main

import "github.com/dbsmedya/mstharness/cmd/mstharness/cmd"

func main() {
	cmd.Execute()
}
