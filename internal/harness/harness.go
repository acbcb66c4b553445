// Package harness synthesises boundary inputs for each eligible function
// and runs them in an isolated subprocess, feeding back
// test_failure_present facts for the scorer. Subprocess isolation
// (sandbox gating, context.WithTimeout + exec.CommandContext) and
// fail-soft per-function error handling follow the same small-typed
// table-driven idiom used across this codebase; the boundary-input
// generators themselves are specific to this harness.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blastshield/engine/internal/bslog"
	"github.com/blastshield/engine/internal/model"
)

// Config controls the harness's eligibility and safety gates.
type Config struct {
	Enabled        bool
	MaxParams      int
	MaxBodyLines   int
	PerCallTimeout time.Duration
	AllowNetwork   bool
	SandboxEnabled bool // run under nsjail; DefaultConfig reads BLASTSHIELD_SANDBOX_ENABLED
}

// DefaultConfig returns a conservative harness configuration: disabled by
// default (the feature is optional), a 6-parameter / 200-line
// eligibility ceiling, and no network access.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		MaxParams:      6,
		MaxBodyLines:   200,
		PerCallTimeout: 5 * time.Second,
		AllowNetwork:   false,
		SandboxEnabled: strings.EqualFold(strings.TrimSpace(os.Getenv("BLASTSHIELD_SANDBOX_ENABLED")), "true"),
	}
}

// networkIndicators flags functions that touch the network; these are
// skipped unless AllowNetwork is explicitly set, per the "must never
// run on network-touching code without an explicit opt-in" requirement.
var networkIndicators = []string{
	"requests.", "socket.", "urllib.", "httpx.", "aiohttp.", "http.client",
}

// Harness synthesises boundary inputs and executes eligible functions in
// an isolated subprocess.
type Harness struct {
	cfg Config
	log *bslog.Logger
}

// New returns a Harness; log may be nil.
func New(cfg Config, log *bslog.Logger) *Harness {
	if log == nil {
		log = bslog.NewNop()
	}
	return &Harness{cfg: cfg, log: log}
}

// Run executes the harness over every eligible function across asts and
// returns the set of function FQNs (module::qualified_name) for which a
// synthesized boundary input produced a failure. files supplies the
// original source each ModuleAST was parsed from, keyed by Path, so the
// driver script can load the real function body rather than a stub. A
// harness-internal error never fails the scan: it is logged and the
// function is simply omitted from the result, per the fail-closed
// requirement.
func (h *Harness) Run(ctx context.Context, asts []*model.ModuleAST, files []model.FileInput) map[string]bool {
	failures := map[string]bool{}
	if !h.cfg.Enabled {
		return failures
	}

	source := make(map[string][]byte, len(files))
	for _, f := range files {
		source[f.Path] = f.Content
	}

	for _, ast := range asts {
		if ast.ParseError {
			continue
		}
		src, ok := source[ast.Path]
		if !ok {
			continue
		}
		for _, fn := range ast.AllFunctions() {
			if ctx.Err() != nil {
				return failures
			}
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			if !h.eligible(fn) {
				continue
			}
			if touchesNetwork(fn) && !h.cfg.AllowNetwork {
				h.log.Debug("harness skipping network-touching function", zap.String("function", fn.QualifiedName))
				continue
			}
			if h.exercise(ctx, src, fn) {
				failures[fqn] = true
			}
		}
	}
	return failures
}

// eligible restricts the harness to simple, top-level functions: nested
// functions and methods need an enclosing scope or instance the harness
// does not synthesize, so QualifiedName == Name is required alongside
// the size/arity ceiling.
func (h *Harness) eligible(fn *model.FunctionDef) bool {
	if fn.QualifiedName != fn.Name {
		return false
	}
	if len(fn.Params) > h.cfg.MaxParams {
		return false
	}
	if fn.EndLine-fn.StartLine > h.cfg.MaxBodyLines {
		return false
	}
	return true
}

func touchesNetwork(fn *model.FunctionDef) bool {
	for _, cs := range fn.CallSites {
		for _, n := range networkIndicators {
			if strings.HasPrefix(cs.Callee, n) || strings.HasPrefix(cs.Receiver+".", n) {
				return true
			}
		}
	}
	return false
}

// exercise synthesises one boundary-input call per boundary profile and
// runs them all in one isolated subprocess, reporting whether any call
// raised an exception. Failures in harness plumbing
// itself (missing python3, serialization errors) are logged and treated
// as "no failure observed", never as a scan failure.
func (h *Harness) exercise(ctx context.Context, src []byte, fn *model.FunctionDef) bool {
	inputs := SynthesizeBoundaryInputs(fn.Params)
	if len(inputs) == 0 {
		return false
	}
	h.log.Debug("harness exercising function", zap.String("function", fn.QualifiedName), zap.String("profiles", DescribeCalls(inputs)))

	runCtx, cancel := context.WithTimeout(ctx, h.cfg.PerCallTimeout)
	defer cancel()

	script, err := buildHarnessScript(src, fn, inputs)
	if err != nil {
		h.log.Warn("harness script build failed", zap.Error(err))
		return false
	}

	cmd := h.command(runCtx, script)
	out, err := cmd.Output()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			h.log.Warn("harness invocation timed out", zap.String("function", fn.QualifiedName))
			return false
		}
		// The driver catches Exception around each call, so a non-zero
		// exit means something raised outside those handlers (loading the
		// module source, or a BaseException such as SystemExit from a
		// call); it is counted as a failure.
		return isHarnessFailureExit(err)
	}

	var result harnessResult
	if jsonErr := json.Unmarshal(out, &result); jsonErr != nil {
		h.log.Warn("harness output unparseable", zap.Error(jsonErr))
		return false
	}
	return result.Failed
}

func (h *Harness) command(ctx context.Context, script string) *exec.Cmd {
	if h.cfg.SandboxEnabled {
		return buildNsjailCommand(ctx, script)
	}
	return exec.CommandContext(ctx, "python3", "-c", script)
}

// buildNsjailCommand builds a sandboxed subprocess invocation: isolated
// filesystem, no network, bounded resources.
func buildNsjailCommand(ctx context.Context, script string) *exec.Cmd {
	args := []string{
		"-Mo",
		"--user", "nobody",
		"--chroot", "/tmp/nsjail_root",
		"--iface_no_lo",
		"--disable_proc",
		"--rlimit_as", "256",
		"--rlimit_cpu", "5",
		"--rlimit_fsize", "1",
		"--rlimit_nofile", "32",
		"--time_limit", "5",
		"--quiet",
		"--",
		"/usr/bin/python3", "-c", script,
	}
	return exec.CommandContext(ctx, "nsjail", args...)
}

type harnessResult struct {
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`
}

// isHarnessFailureExit treats any non-zero exec.ExitError as an observed
// failure (the driver script exits 0 after printing its JSON result, and
// non-zero only when an exception escapes its per-call handlers).
func isHarnessFailureExit(err error) bool {
	_, ok := err.(*exec.ExitError)
	return ok
}

// buildHarnessScript renders a Python driver that loads the original
// module source verbatim (so the target function's real body runs, not a
// stub) inside a throwaway namespace, then calls the target by name once
// per synthesized boundary-input combination, catching exceptions per
// call so one bad input does not mask the rest.
func buildHarnessScript(src []byte, fn *model.FunctionDef, inputs []BoundaryCall) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("no boundary inputs for %s", fn.QualifiedName)
	}
	moduleSrc, err := json.Marshal(string(src))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("import json\n")
	fmt.Fprintf(&b, "_ns = {}\nexec(json.loads(%s), _ns)\n", moduleSrc)
	b.WriteString("failed = False\n")
	fmt.Fprintf(&b, "_target = _ns.get(%q)\n", fn.Name)
	b.WriteString("if _target is None:\n    failed = False\nelse:\n")
	for _, in := range inputs {
		fmt.Fprintf(&b, "    try:\n        _target(%s)\n    except Exception:\n        failed = True\n", in.ArgList)
	}
	b.WriteString("print(json.dumps({\"failed\": failed}))\n")
	return b.String(), nil
}
