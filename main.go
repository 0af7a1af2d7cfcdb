package main

import (
	"epideploy/cmd"
)

func main() {
	cmd.Execute()
}
