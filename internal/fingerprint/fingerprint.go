// Package fingerprint wraps the external acoustic-fingerprint tool
// (Chromaprint's fpcalc) as an opaque child process (§4.6, §GLOSSARY
// "Fingerprint"). Grounded on the teacher's exec.LookPath/exec.Command
// tool-wrapping idiom in internal/tagger/embed_cover.go.
package fingerprint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrToolNotFound is returned when fpcalc is not installed on PATH.
var ErrToolNotFound = errors.New("fingerprint: fpcalc not found on PATH")

// ErrNoFingerprint is returned when fpcalc ran but produced no
// FINGERPRINT= line, signaling a per-file fingerprint_error (§7 error table).
var ErrNoFingerprint = errors.New("fingerprint: fpcalc produced no fingerprint")

// timeout is the hard per-file budget (§5 "Concurrency & resource model").
const timeout = 60 * time.Second

// Compute runs `fpcalc -raw <path>` and returns the FINGERPRINT= value.
// stdout/stderr are fully drained before returning, per §5's "drained
// before the next file" requirement.
func Compute(ctx context.Context, path string) (string, error) {
	toolPath, err := exec.LookPath("fpcalc")
	if err != nil {
		return "", fmt.Errorf("%w", ErrToolNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, toolPath, "-raw", path)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("fingerprint: fpcalc failed for %s: %w", path, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := strings.CutPrefix(line, "FINGERPRINT="); ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoFingerprint, path)
}

// Available reports whether fpcalc is installed, for the preflight
// check that aborts a sync before Stage 0 if it is missing (§7 error
// table "PreflightMissingTool").
func Available() bool {
	_, err := exec.LookPath("fpcalc")
	return err == nil
}
