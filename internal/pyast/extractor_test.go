package pyast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestExtractAll_CleanFunction(t *testing.T) {
	files := []model.FileInput{
		{Path: "a.py", Content: []byte("def add(a, b):\n    return a + b\n")},
	}
	e := New(nil)
	asts, violations := e.ExtractAll(context.Background(), files)

	require.Len(t, asts, 1)
	require.Empty(t, violations)
	require.False(t, asts[0].ParseError)
	require.Len(t, asts[0].Functions, 1)
	require.Equal(t, "add", asts[0].Functions[0].Name)
	require.Len(t, asts[0].Functions[0].Params, 2)
}

func TestExtractAll_ParseError(t *testing.T) {
	files := []model.FileInput{
		{Path: "a.py", Content: []byte("def broken(:\n")},
		{Path: "b.py", Content: []byte("def ok():\n    pass\n")},
	}
	e := New(nil)
	asts, violations := e.ExtractAll(context.Background(), files)

	require.Len(t, asts, 2)
	require.True(t, asts[0].ParseError)
	require.False(t, asts[1].ParseError)
	require.Len(t, violations, 1)
	require.Equal(t, "parse_error", violations[0].RuleID)
}

func TestExtractAll_UnsupportedLanguage(t *testing.T) {
	files := []model.FileInput{
		{Path: "main.go", Content: []byte("package main\n")},
	}
	e := New(nil)
	asts, violations := e.ExtractAll(context.Background(), files)

	require.Len(t, asts, 1)
	require.Equal(t, "unsupported", asts[0].Language)
	require.Len(t, violations, 1)
	require.Equal(t, "unsupported_language", violations[0].RuleID)
}

func TestExtractAll_AsyncAwaitAndDecorators(t *testing.T) {
	src := `
import asyncio

@app.route("/x")
async def handler():
    await helper()

async def helper():
    pass
`
	files := []model.FileInput{{Path: "s.py", Content: []byte(src)}}
	e := New(nil)
	asts, _ := e.ExtractAll(context.Background(), files)
	require.Len(t, asts, 1)
	all := asts[0].AllFunctions()
	require.Len(t, all, 2)

	var handler *model.FunctionDef
	for _, fn := range all {
		if fn.Name == "handler" {
			handler = fn
		}
	}
	require.NotNil(t, handler)
	require.True(t, handler.IsAsync)
	require.Contains(t, handler.Decorators, "app.route")
	require.Len(t, handler.CallSites, 1)
	require.True(t, handler.CallSites[0].Awaited)
}
