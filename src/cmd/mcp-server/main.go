// Package main provides the MCP server entry point for the BuildMaster
// console. It exposes read-only build inspection tools (status, active build,
// history, logs) over stdio.
package main

import (
	"os"

	"buildmaster-console/src/buildmaster"
	"buildmaster-console/src/config"
	"buildmaster-console/src/logger"
	"buildmaster-console/src/mcp"
)

func main() {
	// MCP traffic runs over stdout, so logs must stay on stderr.
	log := logger.NewConsoleLogger()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Error("configuration error: %v", err)
		os.Exit(1)
	}
	client := buildmaster.NewClient(cfg.APIURL, cfg.SessionToken)

	log.Info("serving BuildMaster tools over stdio against %s", cfg.APIURL)
	server := mcp.NewServer(client)
	if err := server.Run(); err != nil {
		log.Error("MCP server error: %v", err)
		os.Exit(1)
	}
}
