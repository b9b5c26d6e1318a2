package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetReportTool returns the get_report tool definition
func createGetReportTool() mcp.Tool {
	return mcp.NewTool("get_report",
		mcp.WithDescription("Build the full report for a ticker: market quote, SEC filings metrics and an analyst narrative"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker, optionally with an exchange suffix (NVDA, CDR.WA)"),
		),
	)
}

// createGetQuoteTool returns the get_quote tool definition
func createGetQuoteTool() mcp.Tool {
	return mcp.NewTool("get_quote",
		mcp.WithDescription("Current price, valuation multiples, margins and analyst consensus for a ticker"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker, optionally with an exchange suffix"),
		),
	)
}

// createGetFilingsTool returns the get_filings tool definition
func createGetFilingsTool() mcp.Tool {
	return mcp.NewTool("get_filings",
		mcp.WithDescription("Latest annual and quarterly metrics from SEC 10-K/10-Q filings"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("SEC CIK (numeric) or US ticker"),
		),
	)
}

// createListEntitiesTool returns the list_entities tool definition
func createListEntitiesTool() mcp.Tool {
	return mcp.NewTool("list_entities",
		mcp.WithDescription("List the securities in the report rotation"),
	)
}
