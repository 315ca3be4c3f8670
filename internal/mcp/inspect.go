package mcp

import (
	"context"
	"fmt"

	"github.com/deixis/appverify/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from an av_locate or av_verify result"`
	Kind  string `json:"kind,omitempty" jsonschema:"expected run kind (locate or verify); a mismatch is an error"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if h.store == nil {
		return errorResult("no record store configured")
	}

	record, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	if params.Kind != "" {
		if err := record.Expect(report.Kind(params.Kind)); err != nil {
			return errorResult(err.Error())
		}
	}
	return textResult(report.Format(record))
}
