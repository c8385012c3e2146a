package main

import (
	"log"

	"github.com/taskforge/gitstore/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitstore: %v", err)
	}
}
