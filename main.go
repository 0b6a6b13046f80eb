package main

import (
	"spitbox/cmd"
)

func main() {
	cmd.Execute()
}
