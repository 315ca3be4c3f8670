package mcp

import (
	"context"
	"errors"

	"github.com/deixis/appverify/internal/locate"
	"github.com/deixis/appverify/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type locateParams struct {
	Platform string `json:"platform,omitempty" jsonschema:"target platform (windows, darwin, linux); defaults to the host platform"`
}

func (h *handler) locateHandler(ctx context.Context, req *mcp.CallToolRequest, params locateParams) (*mcp.CallToolResult, any, error) {
	eng := h.snapshot()
	if params.Platform != "" {
		eng.Platform = params.Platform
	}

	res, err := eng.Locate(ctx)
	switch {
	case errors.Is(err, locate.ErrNotFound):
		return errorResult(report.Format(res.Record))
	case err != nil:
		return errorResult(err.Error())
	}
	return textResult(report.Format(res.Record))
}
