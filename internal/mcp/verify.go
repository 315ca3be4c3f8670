package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/appverify/internal/locate"
	"github.com/deixis/appverify/internal/report"
	"github.com/deixis/appverify/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type verifyParams struct {
	Path    string   `json:"path,omitempty" jsonschema:"executable to launch; located automatically when empty"`
	Port    int      `json:"port,omitempty" jsonschema:"loopback port the application binds once started"`
	Timeout string   `json:"timeout,omitempty" jsonschema:"overall deadline as a Go duration (e.g. 30s)"`
	Args    []string `json:"args,omitempty" jsonschema:"extra arguments passed to the application"`
}

func (h *handler) verifyHandler(ctx context.Context, req *mcp.CallToolRequest, params verifyParams) (*mcp.CallToolResult, any, error) {
	opts := workflow.VerifyOptions{Port: params.Port, Args: params.Args}
	if params.Timeout != "" {
		d, err := time.ParseDuration(params.Timeout)
		if err != nil || d <= 0 {
			return errorResult(fmt.Sprintf("invalid timeout %q", params.Timeout))
		}
		opts.Timeout = d
	}

	eng := h.snapshot()
	var stderr bytes.Buffer
	eng.Diagnostics = &stderr

	path := params.Path
	if path == "" {
		found, err := eng.Locate(ctx)
		switch {
		case errors.Is(err, locate.ErrNotFound):
			return errorResult(report.Format(found.Record))
		case err != nil:
			return errorResult(err.Error())
		}
		path = found.Candidate.Path
	}

	res := eng.Verify(ctx, path, opts)

	var b strings.Builder
	b.WriteString(report.Format(res.Record))
	if stderr.Len() > 0 {
		b.WriteString("\nDiagnostics:\n")
		b.Write(stderr.Bytes())
	}
	if !res.Result.OK() {
		return errorResult(b.String())
	}
	return textResult(b.String())
}
