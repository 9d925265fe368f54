package main

import (
	"github.com/billm/pezbus/cmd"
)

func main() {
	cmd.Execute()
}
