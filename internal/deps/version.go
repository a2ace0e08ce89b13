package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 3 * time.Second

// Version runs `<command> <flag>` and returns the first non-empty output
// line, or "" when the command cannot be executed. ffmpeg and ffprobe use
// "-version"; espeak-ng and uvx use "--version".
func Version(ctx context.Context, command, flag string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, command, flag).CombinedOutput() //nolint:gosec
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
