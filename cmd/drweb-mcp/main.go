// Command drweb-mcp exposes query evaluation as a single MCP tool, proxying
// over stdio to a running drweb-server instance.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// queryRequest mirrors the drweb-server /api/v1/query request model.
type queryRequest struct {
	Document json.RawMessage `json:"query"`
	Strict   bool            `json:"strict,omitempty"`
}

// queryResponse mirrors the drweb-server /api/v1/query response model.
type queryResponse struct {
	Success     bool            `json:"success"`
	Records     json.RawMessage `json:"records"`
	DurationMS  int64           `json:"duration_ms"`
	DriverUsed  string          `json:"driver_used"`
	Diagnostics []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"diagnostics"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("DRWEB_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8088"
	}
	apiKey := os.Getenv("DRWEB_API_KEY")

	s := server.NewMCPServer(
		"drweb",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	evaluateTool := mcp.NewTool("evaluate_query",
		mcp.WithDescription("Evaluate a declarative query document (start_url, steps, optional pagination/pre_actions) against a live web page and return the extracted record tree as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The query document as a JSON string: {\"start_url\": ..., \"steps\": [...]}"),
		),
		mcp.WithBoolean("strict",
			mcp.Description("Fail the whole evaluation on any step error instead of soft-failing with diagnostics (default: false)"),
		),
	)
	s.AddTool(evaluateTool, handleEvaluateQuery(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleEvaluateQuery(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docStr, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		var doc json.RawMessage
		if err := json.Unmarshal([]byte(docStr), &doc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query must be valid JSON: %v", err)), nil
		}
		strict := request.GetBool("strict", false)

		body, err := json.Marshal(queryRequest{Document: doc, Strict: strict})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/query", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var qr queryResponse
		if err := json.Unmarshal(respBody, &qr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !qr.Success {
			errMsg := "evaluation failed"
			if qr.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", qr.Error.Code, qr.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, qr.Records, "", "  "); err != nil {
			pretty.Write(qr.Records)
		}

		result := fmt.Sprintf("Driver: %s  Duration: %dms\n\n%s", qr.DriverUsed, qr.DurationMS, pretty.String())
		return mcp.NewToolResultText(result), nil
	}
}
