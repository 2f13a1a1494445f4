package main

import "github.com/ipodsync/core/cmd"

func main() {
	cmd.Execute()
}
