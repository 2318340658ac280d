package main

import (
	"github.com/DrSkyle/sbh/cmd/sbh/commands"
)

func main() {
	commands.Execute()
}
