package llmrelay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSSE(t *testing.T) {
	body := strings.Join([]string{
		": comment line",
		"data: {\"a\":1}",
		"",
		"event: something",
		"data: {\"a\":2}",
		"data: [DONE]",
		"data: {\"a\":3}",
	}, "\n")

	var frames []string
	err := ScanSSE(context.Background(), strings.NewReader(body), func(data string) error {
		frames = append(frames, data)
		return nil
	})

	require.NoError(t, err)
	// The [DONE] sentinel ends iteration; the frame after it is never seen.
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, frames)
}

func TestScanSSE_HandlerError(t *testing.T) {
	body := "data: one\ndata: two\n"
	handlerErr := errors.New("bad frame")

	var frames int
	err := ScanSSE(context.Background(), strings.NewReader(body), func(data string) error {
		frames++
		return handlerErr
	})

	assert.ErrorIs(t, err, handlerErr)
	assert.Equal(t, 1, frames)
}

func TestScanSSE_StopStream(t *testing.T) {
	body := "data: one\ndata: two\n"

	var frames int
	err := ScanSSE(context.Background(), strings.NewReader(body), func(data string) error {
		frames++
		return ErrStopStream
	})

	require.NoError(t, err)
	assert.Equal(t, 1, frames)
}

func TestScanSSE_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ScanSSE(ctx, strings.NewReader("data: one\n"), func(data string) error {
		t.Fatal("handler should not run after cancellation")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
