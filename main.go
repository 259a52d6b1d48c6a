package main

import "github.com/mj1618/tab-bridge/cmd"

func main() {
	cmd.Execute()
}
