package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	scerrors "github.com/standardbeagle/scriptref/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse creates a standardized error response for MCP tools
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	return createSmartErrorResponse(operation, err, nil)
}

// createSmartErrorResponse reports err inside the result with IsError set, plus
// suggestions matched on the error kind and any extra context.
func createSmartErrorResponse(operation string, err error, context map[string]interface{}) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if kind := errorKind(err); kind != "" {
		errorData["kind"] = kind
	}
	if suggestions := generateErrorSuggestions(err); len(suggestions) > 0 {
		errorData["suggestions"] = suggestions
	}
	if len(context) > 0 {
		errorData["context"] = context
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}

	// Tool errors belong in the result so the client can see them and self-correct
	response.IsError = true
	return response, nil
}

// errorKind names the sentinel behind err, if any
func errorKind(err error) string {
	switch {
	case errors.Is(err, scerrors.ErrNotReady):
		return "not_ready"
	case errors.Is(err, scerrors.ErrUnsupportedSource):
		return "unsupported_source"
	case errors.Is(err, scerrors.ErrCompanionMissing):
		return "companion_missing"
	case errors.Is(err, scerrors.ErrCompanionMalformed):
		return "companion_malformed"
	case errors.Is(err, scerrors.ErrRebuildSuperseded):
		return "superseded"
	default:
		return ""
	}
}

func generateErrorSuggestions(err error) []string {
	switch errorKind(err) {
	case "not_ready":
		return []string{
			"The index is still being built; retry in a moment",
			"Call index_status to see build progress, or rebuild_index with wait=true",
		}
	case "unsupported_source":
		return []string{"Only C# (.cs) script files have companion guids that prefabs reference"}
	case "companion_missing":
		return []string{"The script has no .meta file yet; let Unity import it, then retry"}
	case "companion_malformed":
		return []string{"The .meta file has no valid guid line; reimport the script in Unity"}
	case "superseded":
		return []string{"A newer rebuild replaced this one; call index_status"}
	default:
		return nil
	}
}
