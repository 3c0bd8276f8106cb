// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sysops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// executor abstracts process execution for testing.
type executor interface {
	// Run starts name with args, feeds stdin, and returns the combined
	// output and exit code once the process ends.
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (output []byte, exitCode int, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	configure(cmd)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return out.Bytes(), exitErr.ExitCode(), nil
	}
	return out.Bytes(), -1, err
}

var defaultExec executor = &osExecutor{}

func (h *Host) Run(ctx context.Context, c Command) (Result, error) {
	var stdin io.Reader
	if c.Stdin != "" {
		stdin = strings.NewReader(c.Stdin)
	}

	h.log.Debug("running command", zap.String("name", c.Name), zap.Strings("args", c.Args))
	out, code, err := h.exec.Run(ctx, c.Name, c.Args, stdin)
	res := Result{ExitCode: code, Output: strings.TrimSpace(string(out))}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("running %s: %w", c.Name, ctxErr)
	}
	if err != nil {
		return res, fmt.Errorf("running %s: %w", c.Name, err)
	}
	h.log.Debug("command finished", zap.String("name", c.Name), zap.Int("exit_code", code))
	return res, nil
}
