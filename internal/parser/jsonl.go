package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// Usage is one API call's token usage, as read from a provider response
type Usage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	Description  string
}

// rawMessage covers the usage shapes we accept on one JSONL line: Anthropic
// messages, OpenAI chat completions and the ledger's own flat form
type rawMessage struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`

	InputTokens  *int64 `json:"inputTokens"`
	OutputTokens *int64 `json:"outputTokens"`

	Usage *struct {
		InputTokens      *int64 `json:"input_tokens"`
		OutputTokens     *int64 `json:"output_tokens"`
		PromptTokens     *int64 `json:"prompt_tokens"`
		CompletionTokens *int64 `json:"completion_tokens"`
	} `json:"usage"`

	// Claude Code session logs nest the API response under "message"
	Message *struct {
		Model string `json:"model"`
		Usage *struct {
			InputTokens  *int64 `json:"input_tokens"`
			OutputTokens *int64 `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// maxDescription caps descriptions taken from prompts
const maxDescription = 100

// usage extracts token counts, reporting false when the line carries none
func (raw *rawMessage) usage() (Usage, bool) {
	u := Usage{Model: raw.Model, Description: raw.Description}
	if u.Description == "" && raw.Prompt != "" {
		u.Description = truncate(raw.Prompt, maxDescription)
	}

	switch {
	case raw.InputTokens != nil || raw.OutputTokens != nil:
		u.InputTokens = deref(raw.InputTokens)
		u.OutputTokens = deref(raw.OutputTokens)
	case raw.Usage != nil && (raw.Usage.InputTokens != nil || raw.Usage.OutputTokens != nil):
		u.InputTokens = deref(raw.Usage.InputTokens)
		u.OutputTokens = deref(raw.Usage.OutputTokens)
	case raw.Usage != nil && (raw.Usage.PromptTokens != nil || raw.Usage.CompletionTokens != nil):
		u.InputTokens = deref(raw.Usage.PromptTokens)
		u.OutputTokens = deref(raw.Usage.CompletionTokens)
	case raw.Message != nil && raw.Message.Usage != nil:
		if u.Model == "" {
			u.Model = raw.Message.Model
		}
		u.InputTokens = deref(raw.Message.Usage.InputTokens)
		u.OutputTokens = deref(raw.Message.Usage.OutputTokens)
	default:
		return Usage{}, false
	}

	// Skip if no actual usage
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return Usage{}, false
	}
	return u, true
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Parse reads JSONL from r and calls fn for each line that carries usage.
// Malformed lines are skipped. It stops early when ctx is done or fn returns
// an error, even while a read on r is blocked. The returned count is the
// number of lines skipped.
func Parse(ctx context.Context, r io.Reader, fn func(Usage) error) (skipped int, err error) {
	scanner := bufio.NewScanner(r)

	// Increase buffer size for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- bytes.Clone(scanner.Bytes()):
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}

		var line []byte
		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return skipped, <-scanErr
			}
			line = l
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var raw rawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			skipped++
			continue
		}

		u, ok := raw.usage()
		if !ok {
			skipped++
			continue
		}

		if err := fn(u); err != nil {
			return skipped, err
		}
	}
}

// ParseFile parses a single JSONL file and returns its usage entries
func ParseFile(ctx context.Context, path string) ([]Usage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var usages []Usage
	_, err = Parse(ctx, file, func(u Usage) error {
		usages = append(usages, u)
		return nil
	})
	return usages, err
}
