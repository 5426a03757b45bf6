package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/prompt-gateway/internal/httputil"
	"github.com/af-corp/prompt-gateway/internal/router/adapters"
)

var errFlushUnsupported = errors.New("response writer does not support flushing")

type streamResult struct {
	chunks       int
	firstChunkAt time.Time
	err          error
	// started is false when nothing was written to the client yet
	started bool
}

// streamText writes each chunk to the client as plain text and flushes it
// immediately. The stream has no envelope; closing the response ends it.
func streamText(w http.ResponseWriter, reqID string, chunks <-chan adapters.Chunk) streamResult {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "Streaming not supported")
		return streamResult{err: errFlushUnsupported}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	res := streamResult{started: true}
	for chunk := range chunks {
		if chunk.Err != nil {
			slog.Error("error reading stream", "request_id", reqID, "error", chunk.Err)
			res.err = chunk.Err
			return res
		}
		if res.chunks == 0 {
			res.firstChunkAt = time.Now()
		}
		if _, err := io.WriteString(w, chunk.Text); err != nil {
			res.err = fmt.Errorf("write chunk: %w", err)
			return res
		}
		flusher.Flush()
		res.chunks++
	}
	return res
}
