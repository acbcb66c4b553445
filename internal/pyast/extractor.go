// Package pyast parses Python source into the engine's language-neutral
// ModuleAST. Parsing uses tree-sitter's Python grammar, walking the CST
// by field name and emitting ModuleAST/FunctionDef shapes rather than a
// generic polymorphic graph node.
package pyast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/blastshield/engine/internal/bslog"
	"github.com/blastshield/engine/internal/model"
	"go.uber.org/zap"
)

// Extractor runs Python parsing across a set of files through a bounded
// worker pool reading from passive []FileInput rather than walking a
// directory itself.
type Extractor struct {
	workers int
	log     *bslog.Logger
}

// New returns an Extractor sized to the host CPU count, bounded to
// [2,16].
func New(log *bslog.Logger) *Extractor {
	if log == nil {
		log = bslog.NewNop()
	}
	return &Extractor{workers: optimalWorkerCount(), log: log}
}

func optimalWorkerCount() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	if n > 16 {
		return 16
	}
	return n
}

// fileResult pairs a produced ModuleAST with any synthetic violation the
// extraction stage itself emitted for that file.
type fileResult struct {
	ast       *model.ModuleAST
	violation *model.RuleViolation
}

// ExtractAll parses every file concurrently, preserving the input order in
// the returned ModuleAST slice so downstream (file, line) ordering stays
// deterministic regardless of worker completion order.
func (e *Extractor) ExtractAll(ctx context.Context, files []model.FileInput) ([]*model.ModuleAST, []model.RuleViolation) {
	results := make([]fileResult, len(files))

	type job struct {
		idx int
		fi  model.FileInput
	}
	jobs := make(chan job, len(files))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(python.GetLanguage())

		for j := range jobs {
			select {
			case <-ctx.Done():
				results[j.idx] = fileResult{ast: unsupportedOrCancelled(j.fi)}
				continue
			default:
			}
			ast, violation := e.extractOne(ctx, parser, j.fi)
			results[j.idx] = fileResult{ast: ast, violation: violation}
		}
	}

	wg.Add(e.workers)
	for i := 0; i < e.workers; i++ {
		go worker()
	}
	for i, fi := range files {
		jobs <- job{idx: i, fi: fi}
	}
	close(jobs)
	wg.Wait()

	asts := make([]*model.ModuleAST, 0, len(results))
	var violations []model.RuleViolation
	for _, r := range results {
		if r.ast != nil {
			asts = append(asts, r.ast)
		}
		if r.violation != nil {
			violations = append(violations, *r.violation)
		}
	}
	return asts, violations
}

func unsupportedOrCancelled(fi model.FileInput) *model.ModuleAST {
	return &model.ModuleAST{
		ModuleID:   moduleID(fi.Path),
		Path:       fi.Path,
		Language:   "unsupported",
		ParseError: true,
	}
}

// extractOne parses a single file, producing either a populated
// ModuleAST or one with ParseError/unsupported-language set alongside a
// single synthetic violation.
func (e *Extractor) extractOne(ctx context.Context, parser *sitter.Parser, fi model.FileInput) (*model.ModuleAST, *model.RuleViolation) {
	if !strings.HasSuffix(fi.Path, ".py") {
		return &model.ModuleAST{
				ModuleID:   moduleID(fi.Path),
				Path:       fi.Path,
				Language:   "unsupported",
				ParseError: true,
			}, &model.RuleViolation{
				RuleID:      "unsupported_language",
				Severity:    model.SeverityLow,
				File:        fi.Path,
				Line:        1,
				EndLine:     1,
				Title:       "Unsupported source language",
				Description: fmt.Sprintf("%s is not a recognised Python source file", fi.Path),
				Evidence:    []string{fmt.Sprintf("file extension of %q is not .py", fi.Path)},
				Unresolved:  true,
			}
	}

	tree, err := parser.ParseCtx(ctx, nil, fi.Content)
	if err != nil || tree == nil || tree.RootNode() == nil || tree.RootNode().HasError() {
		e.log.Warn("parse_error", zap.String("file", fi.Path))
		return &model.ModuleAST{
				ModuleID:   moduleID(fi.Path),
				Path:       fi.Path,
				Language:   "python",
				ParseError: true,
			}, &model.RuleViolation{
				RuleID:      "parse_error",
				Severity:    model.SeverityLow,
				File:        fi.Path,
				Line:        1,
				EndLine:     1,
				Title:       "Syntax error",
				Description: fmt.Sprintf("%s could not be parsed as Python source", fi.Path),
				Evidence:    []string{"tree-sitter reported a syntax error while parsing the file"},
				Unresolved:  true,
			}
	}
	defer tree.Close()

	w := &walker{src: fi.Content, path: fi.Path}
	ast := w.walkModule(tree.RootNode())
	ast.ModuleID = moduleID(fi.Path)
	ast.Path = fi.Path
	ast.Language = "python"
	return ast, nil
}

// moduleID derives a dotted module id from a file path, stripping the
// .py extension and converting path separators to dots.
func moduleID(path string) string {
	trimmed := strings.TrimSuffix(path, filepath.Ext(path))
	trimmed = strings.TrimPrefix(trimmed, "./")
	return strings.ReplaceAll(trimmed, "/", ".")
}

// contentHash is the SHA-256 cache key component for a file's bytes.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ContentHash exposes contentHash to other packages. internal/cache
// builds its keys with its own cache.HashContent, not with this.
func ContentHash(content []byte) string { return contentHash(content) }
