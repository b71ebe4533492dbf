package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	execpkg "pilot/pkg/exec"
)

func TestGetDiffToolBuildDiffCommand(t *testing.T) {
	tool := NewGetDiffTool(nil, "/project", 1000)

	testCases := []struct {
		name    string
		path    string
		wantCmd string
		wantErr bool
	}{
		{
			name:    "whole tree",
			wantCmd: "git diff --no-color --no-ext-diff HEAD 2>&1 | head -n 1000",
		},
		{
			name:    "single file",
			path:    "db/questions.go",
			wantCmd: "git diff --no-color --no-ext-diff HEAD -- 'db/questions.go' 2>&1 | head -n 1000",
		},
		{
			name:    "path is cleaned",
			path:    "pkg/../main.go",
			wantCmd: "git diff --no-color --no-ext-diff HEAD -- 'main.go' 2>&1 | head -n 1000",
		},
		{name: "parent traversal", path: "../secret", wantErr: true},
		{name: "absolute path", path: "/etc/passwd", wantErr: true},
		{name: "quote in path", path: "a'b", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tool.diffCommand(tc.path)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCmd, got)
		})
	}
}

func TestGetDiffToolDefaultLimit(t *testing.T) {
	tool := NewGetDiffTool(nil, "/project", 0)
	assert.Equal(t, 10000, tool.maxDiffLines)
}

func TestGetDiffToolExec(t *testing.T) {
	ctx := context.Background()

	out := "diff --git a/main.go b/main.go\n+added\n"
	tool := NewGetDiffTool(&fakeExecutor{result: execpkg.Result{Stdout: out}}, "/project", 2)
	res, err := tool.Exec(ctx, map[string]any{})
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, out, m["diff"])
	assert.Equal(t, true, m["truncated"])

	tool = NewGetDiffTool(&fakeExecutor{result: execpkg.Result{Stdout: "fatal: not a git repository"}}, "/project", 0)
	res, err = tool.Exec(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, res)["success"])

	res, err = tool.Exec(ctx, map[string]any{"path": "../x"})
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, res)["success"])
}
