package main

import "github.com/samsaffron/seek-chat/cmd"

func main() {
	cmd.Execute()
}
