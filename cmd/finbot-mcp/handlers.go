package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/services/commands"
	"github.com/ternarybob/finbot/internal/services/report"
)

// ToolDispatcher runs the command behind each tool
type ToolDispatcher interface {
	Dispatch(ctx context.Context, cmd commands.Command) (*commands.Response, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleGetReport implements the get_report tool
func handleGetReport(dispatcher ToolDispatcher, logger arbor.ILogger) server.ToolHandlerFunc {
	return lookupHandler(dispatcher, logger, commands.CmdReport, "ticker")
}

// handleGetQuote implements the get_quote tool
func handleGetQuote(dispatcher ToolDispatcher, logger arbor.ILogger) server.ToolHandlerFunc {
	return lookupHandler(dispatcher, logger, commands.CmdQuote, "ticker")
}

// handleGetFilings implements the get_filings tool
func handleGetFilings(dispatcher ToolDispatcher, logger arbor.ILogger) server.ToolHandlerFunc {
	return lookupHandler(dispatcher, logger, commands.CmdFilings, "id")
}

// handleListEntities implements the list_entities tool
func handleListEntities(dispatcher ToolDispatcher, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := dispatcher.Dispatch(ctx, commands.Command{Name: string(commands.CmdList)})
		if err != nil {
			logger.Error().Err(err).Msg("list_entities failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return textResult(resp.Text), nil
	}
}

func lookupHandler(dispatcher ToolDispatcher, logger arbor.ILogger, name commands.Name, param string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString(param)
		if err != nil || id == "" {
			return errorResult(fmt.Sprintf("Error: %s parameter is required", param)), nil
		}

		resp, err := dispatcher.Dispatch(ctx, commands.Command{Name: string(name), Args: []string{id}})
		if err != nil {
			logger.Warn().Err(err).Str("tool", string(name)).Str(param, id).Msg("Tool call failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		return textResult(formatResponse(resp)), nil
	}
}

// formatResponse renders a dispatcher response as markdown
func formatResponse(resp *commands.Response) string {
	switch resp.Kind {
	case commands.ResponseReport:
		return report.Markdown(resp.Payload)
	case commands.ResponseSection:
		if resp.Section.Omitted() {
			ticker := ""
			if resp.Entity != nil {
				ticker = resp.Entity.Ticker
			}
			return fmt.Sprintf("No SEC filings for %s (no CIK: ETF or foreign listing).", ticker)
		}
		return report.SectionMarkdown(resp.Section)
	default:
		return resp.Text
	}
}
