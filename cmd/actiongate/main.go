package main

import "github.com/Action-Gate/actiongate/cmd/actiongate/cmd"

func main() {
	cmd.Execute()
}
