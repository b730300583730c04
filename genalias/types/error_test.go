package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPipelineError(PipelineStageDownload, PipelineOperationDownloadingDump, cause, true)

	assert.Equal(t, "[download:downloading-dump] connection reset", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, err.Retryable)

	withURL := err.WithContext("url", "https://example.com/dump.csv")
	assert.Equal(t, "[download:downloading-dump] connection reset (context: map[url:https://example.com/dump.csv])", withURL.Error())
	assert.Empty(t, err.Context)

	var pipelineErr PipelineError
	wrapped := error(withURL)
	assert.True(t, errors.As(wrapped, &pipelineErr))
	assert.Equal(t, PipelineStageDownload, pipelineErr.Stage)
}
