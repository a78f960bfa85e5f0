package main

import (
	"log"

	"github.com/Umairyojo/NexMark/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Fatalf("❌ nexmark failed: %v", err)
	}
}
