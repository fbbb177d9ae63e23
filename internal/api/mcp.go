package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/relaybot/internal/telemetry"
)

const latestResourceURI = "telemetry://latest"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Telemetry TelemetryService
	Version   string
}

// NewMCPServer creates an MCP server exposing the telemetry tools and resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"relaybot",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("relaybot: latest robot telemetry (motor speeds and state)."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("latest_telemetry",
			mcp.WithDescription("Return the most recent telemetry reading reported by the robot."),
		),
		mcpLatestTelemetry(deps),
	)

	s.AddTool(
		mcp.NewTool("report_telemetry",
			mcp.WithDescription("Submit a telemetry reading as if the robot had reported it. Replaces the stored reading."),
			mcp.WithString("bot", mcp.Description("Reporting robot id")),
			mcp.WithNumber("left", mcp.Description("Left motor speed (integer)"), mcp.Required()),
			mcp.WithNumber("right", mcp.Description("Right motor speed (integer)"), mcp.Required()),
			mcp.WithString("state", mcp.Description("Robot state label"), mcp.Required()),
		),
		mcpReportTelemetry(deps),
	)

	s.AddResource(
		mcp.NewResource(
			latestResourceURI,
			"Latest Telemetry",
			mcp.WithResourceDescription("Most recent telemetry reading as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLatest(deps),
	)

	return s
}

func latestJSON(ctx context.Context, deps MCPDeps) (string, error) {
	rec, err := deps.Telemetry.Latest(ctx)
	if errors.Is(err, telemetry.ErrNoData) {
		b, _ := json.Marshal(statusResponse{Status: "no data yet"})
		return string(b), nil
	}
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(newLatestResponse(rec))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mcpLatestTelemetry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := latestJSON(ctx, deps)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read latest telemetry: %v", err)), nil
		}
		return mcpText(text), nil
	}
}

// reportFields are the tool arguments passed through to the ingest payload.
var reportFields = []string{"bot", "left", "right", "state"}

func mcpReportTelemetry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		payload := make(map[string]any, len(reportFields))
		for _, key := range reportFields {
			if v, ok := args[key]; ok {
				payload[key] = v
			}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode reading: %v", err)), nil
		}

		// Same parsing rules as POST /relaybot-data.
		rec, err := deps.Telemetry.Ingest(ctx, raw, telemetry.OriginAgent)
		var fieldErr *telemetry.FieldError
		switch {
		case err == nil:
		case errors.As(err, &fieldErr):
			return mcpError(fieldErr.Error()), nil
		default:
			return mcpError(fmt.Sprintf("failed to store reading: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored reading %s (left=%d right=%d state=%q)", rec.ID, rec.LeftSpeed, rec.RightSpeed, rec.State)), nil
	}
}

func mcpResourceLatest(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := latestJSON(ctx, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to read latest telemetry: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
