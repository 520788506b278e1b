package main

import (
	"github.com/miradorstack/instana-sre/cmd/instana-sre/commands"
)

func main() {
	commands.HandleError(commands.Execute(), "instana-sre")
}
