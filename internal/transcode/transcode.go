package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/time/rate"
)

// ErrToolNotFound is returned when the external transcoder binary
// isn't installed.
var ErrToolNotFound = errors.New("transcode: ffmpeg not found on PATH")

// timeout is the hard per-file budget (§5 "Concurrency & resource model").
const timeout = 10 * time.Minute

// Limiter throttles how often transcoder invocations start so a large sync
// doesn't saturate the host machine. Grounded on the teacher's
// golang.org/x/time/rate usage in internal/server/middleware/ratelimit.go.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows up to maxPerSecond transcoder starts per second,
// with a burst of the same size.
func NewLimiter(maxPerSecond int) *Limiter {
	if maxPerSecond < 1 {
		maxPerSecond = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(maxPerSecond), maxPerSecond)}
}

// Wait blocks until the limiter admits another transcoder invocation.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// ToALAC transcodes srcPath into an ALAC-in-M4A container at dstPath.
func ToALAC(ctx context.Context, srcPath, dstPath string) error {
	return runFFmpeg(ctx, srcPath, dstPath, "-c:a", "alac")
}

// ToAAC transcodes srcPath into AAC at dstPath, at the configured bitrate.
func ToAAC(ctx context.Context, srcPath, dstPath string, bitrateKbps int) error {
	return runFFmpeg(ctx, srcPath, dstPath, "-c:a", "aac", "-b:a", fmt.Sprintf("%dk", bitrateKbps))
}

func runFFmpeg(ctx context.Context, srcPath, dstPath string, codecArgs ...string) error {
	toolPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return ErrToolNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{"-y", "-i", srcPath}, codecArgs...)
	args = append(args, dstPath)

	cmd := exec.CommandContext(ctx, toolPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("transcode: ffmpeg failed for %s: %w: %s", srcPath, err, out)
	}
	return nil
}
