package main

import (
	"log"

	"github.com/thiagokokada/gitstate-go/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitstate: %v", err)
	}
}
