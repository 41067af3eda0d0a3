package main

import (
	"github.com/axellelanca/acortador/cmd"
	_ "github.com/axellelanca/acortador/cmd/cli"
	_ "github.com/axellelanca/acortador/cmd/server"
)

func main() {
	cmd.Execute()
}
