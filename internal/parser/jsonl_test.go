package parser

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `{"id":"msg_1","type":"message","model":"claude-sonnet-4-5","usage":{"input_tokens":150,"output_tokens":300}}
{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4","usage":{"prompt_tokens":1000,"completion_tokens":20,"total_tokens":1020}}

{"model":"gpt-3.5-turbo","inputTokens":10,"outputTokens":5,"description":"flat"}
{"type":"assistant","message":{"model":"claude-3-haiku","usage":{"input_tokens":7,"output_tokens":0}}}
{not json
{"model":"gpt-4","usage":{"prompt_tokens":0,"completion_tokens":0}}
{"type":"user","message":{"role":"user"}}
`

func TestParse(t *testing.T) {
	var got []Usage
	skipped, err := Parse(context.Background(), strings.NewReader(sample), func(u Usage) error {
		got = append(got, u)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, skipped)

	require.Equal(t, []Usage{
		{Model: "claude-sonnet-4-5", InputTokens: 150, OutputTokens: 300},
		{Model: "gpt-4", InputTokens: 1000, OutputTokens: 20},
		{Model: "gpt-3.5-turbo", InputTokens: 10, OutputTokens: 5, Description: "flat"},
		{Model: "claude-3-haiku", InputTokens: 7},
	}, got)
}

func TestParse_PromptDescription(t *testing.T) {
	long := strings.Repeat("x", 150)
	line := `{"model":"gpt-4","prompt":"` + long + `","usage":{"input_tokens":1,"output_tokens":1}}`

	var got []Usage
	_, err := Parse(context.Background(), strings.NewReader(line), func(u Usage) error {
		got = append(got, u)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Description, maxDescription)
}

func TestParse_StopsOnCallbackError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Parse(context.Background(), strings.NewReader(sample), func(Usage) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestParse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Parse(ctx, strings.NewReader(sample), func(Usage) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestParse_CanceledWhileReadBlocks(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Usage, 1)
	result := make(chan error, 1)
	go func() {
		_, err := Parse(ctx, pr, func(u Usage) error {
			got <- u
			return nil
		})
		result <- err
	}()

	go pw.Write([]byte(`{"model":"gpt-4","inputTokens":1,"outputTokens":2}` + "\n"))

	select {
	case u := <-got:
		require.Equal(t, "gpt-4", u.Model)
	case <-time.After(2 * time.Second):
		t.Fatal("first line was not parsed")
	}

	// the pipe stays open, so the next read blocks until cancel
	cancel()

	select {
	case err := <-result:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Parse did not return after cancel")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	usages, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, usages, 4)

	_, err = ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}
