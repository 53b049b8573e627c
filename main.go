package main

import "github.com/costap/threaded/cmd"

var (
	version = "local"
	commit  = ""
	date    = ""
	builtBy = ""
)

func init() {
	cmd.Version = version
}

func main() {
	cmd.Execute()
}
