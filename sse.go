package llmrelay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// ErrStopStream is returned by an SSE frame handler to end iteration early
// without surfacing an error.
var ErrStopStream = errors.New("llmrelay: stop stream")

// ScanSSE iterates newline-delimited "data: <json>" frames from r, invoking
// fn for each payload. Iteration ends cleanly on the literal "data: [DONE]"
// sentinel, on ErrStopStream from fn, or with ctx.Err() when the context is
// cancelled. Comment lines and non-data lines are skipped. Frame payloads
// that fail to parse are fn's concern: a transient parse issue on one frame
// must not lose the rest of the response.
func ScanSSE(ctx context.Context, r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return nil
		}
		if err := fn(data); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}
