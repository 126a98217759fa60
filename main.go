package main

import "github.com/khanhnv2901/seca-switch/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
