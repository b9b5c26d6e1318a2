package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/finbot/internal/app"
	"github.com/ternarybob/finbot/internal/common"
)

func main() {
	var configPaths []string
	if paths := os.Getenv("FINBOT_CONFIG"); paths != "" {
		configPaths = strings.Split(paths, ",")
	} else if _, err := os.Stat("finbot.toml"); err == nil {
		configPaths = []string{"finbot.toml"}
	}

	config, err := common.LoadFromFiles(configPaths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Lookups only: no chat session, no rotation, no database, no feed.
	// The main service may hold the Badger lock.
	config.Discord.Enabled = false
	config.Rotation.Enabled = false
	config.Rotation.PersistHistory = false
	config.Rotation.PersistCursor = false
	config.WebSocket.Enabled = false

	// stdout carries the protocol, so logs go to stderr at warn
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := newMCPServer(application.Dispatcher, logger)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}

// newMCPServer registers the report tools against dispatcher
func newMCPServer(dispatcher ToolDispatcher, logger arbor.ILogger) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"finbot",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createGetReportTool(), handleGetReport(dispatcher, logger))
	mcpServer.AddTool(createGetQuoteTool(), handleGetQuote(dispatcher, logger))
	mcpServer.AddTool(createGetFilingsTool(), handleGetFilings(dispatcher, logger))
	mcpServer.AddTool(createListEntitiesTool(), handleListEntities(dispatcher, logger))

	return mcpServer
}
