package main

import "github.com/ftl/dcf39/cmd"

func main() {
	cmd.Execute()
}
