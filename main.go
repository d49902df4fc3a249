package main

import (
	"log"

	"github.com/thiagokokada/gitrelay/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitrelay: %v", err)
	}
}
