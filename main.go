package main

import "go-phrase/cmd"

func main() {
	cmd.Execute()
}
