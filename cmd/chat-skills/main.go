package main

import (
	"os"

	"github.com/dwizi/chat-skills/internal/cli"
	"github.com/dwizi/chat-skills/internal/logging"
)

func main() {
	logger, _ := logging.New(os.Getenv("CHAT_SKILLS_LOG_LEVEL"), os.Stdout)
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
