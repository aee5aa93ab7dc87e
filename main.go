package main

import (
	"github.com/AzielCF/az-desk/cmd"
)

func main() {
	cmd.Execute()
}
