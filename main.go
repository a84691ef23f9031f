package main

import "github.com/tycoon-kv/tycoon/cmd"

func main() {
	cmd.Execute()
}
