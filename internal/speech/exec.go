package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// ExecRecognizer runs an external dictation command per capture.
//
// The command receives --language-model, --language and --prompt flags and
// must print {"results": ["best", "next", ...]} to stdout. A non-zero exit is
// a cancelled capture.
type ExecRecognizer struct {
	cmd []string
}

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = 2 * time.Second

type execResult struct {
	Results []string `json:"results"`
}

// NewExecRecognizer parses command with shell quoting rules.
func NewExecRecognizer(command string) (*ExecRecognizer, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recognizer command: %w", err)
	}

	if len(args) == 0 {
		return nil, errors.New("recognizer command is empty")
	}

	return &ExecRecognizer{cmd: args}, nil
}

// Capture runs the command once.
func (r *ExecRecognizer) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	args := append([]string{}, r.cmd[1:]...)
	args = append(args,
		"--language-model", string(req.LanguageModel),
		"--language", req.Locale,
		"--prompt", req.Prompt,
	)

	//nolint:gosec // command comes from the user's own configuration
	command := exec.CommandContext(ctx, r.cmd[0], args...)

	command.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() != nil || errors.As(err, &exitErr) {
			return CaptureResult{Status: StatusCancelled}, nil
		}

		return CaptureResult{}, fmt.Errorf("failed to run recognizer command: %w: %s",
			err, strings.TrimSpace(stderr.String()))
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return CaptureResult{}, fmt.Errorf("failed to decode recognizer output: %w", err)
	}

	return CaptureResult{Status: StatusOK, Candidates: resp.Results}, nil
}
