package main

import (
	"github.com/KaramelBytes/edsteva-cli/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// optional .env with EDSTEVA_* overrides
	_ = godotenv.Load()
	cmd.Execute()
}
