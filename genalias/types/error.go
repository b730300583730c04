package types

import (
	"fmt"
)

type PipelineStage string

const (
	PipelineStageConfig   PipelineStage = "config"
	PipelineStageCheckout PipelineStage = "checkout"
	PipelineStageDownload PipelineStage = "download"
	PipelineStageGenerate PipelineStage = "generate"
	PipelineStagePublish  PipelineStage = "publish"
	PipelineStageReport   PipelineStage = "report"
)

type PipelineOperation string

const (
	PipelineOperationReadingConfig    PipelineOperation = "reading-config"
	PipelineOperationValidatingConfig PipelineOperation = "validating-config"
	PipelineOperationCloningPages     PipelineOperation = "cloning-pages"
	PipelineOperationDownloadingDump  PipelineOperation = "downloading-dump"
	PipelineOperationOpeningDump      PipelineOperation = "opening-dump"
	PipelineOperationGeneratingLists  PipelineOperation = "generating-lists"
	PipelineOperationDescribingLists  PipelineOperation = "describing-lists"
	PipelineOperationCommitting       PipelineOperation = "committing"
	PipelineOperationPushing          PipelineOperation = "pushing"
	PipelineOperationWritingReport    PipelineOperation = "writing-report"
)

// PipelineError provides structured error handling
type PipelineError struct {
	Stage     PipelineStage
	Operation PipelineOperation
	Err       error
	Retryable bool
	Context   map[string]interface{}
}

func (e PipelineError) Error() string {
	if len(e.Context) > 0 {
		return fmt.Sprintf("[%s:%s] %v (context: %v)", e.Stage, e.Operation, e.Err, e.Context)
	}
	return fmt.Sprintf("[%s:%s] %v", e.Stage, e.Operation, e.Err)
}

func (e PipelineError) Unwrap() error {
	return e.Err
}

func NewPipelineError(stage PipelineStage, operation PipelineOperation, err error, retryable bool) PipelineError {
	return PipelineError{
		Stage:     stage,
		Operation: operation,
		Err:       err,
		Retryable: retryable,
	}
}

func (e PipelineError) WithContext(key string, value interface{}) PipelineError {
	ctx := make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	e.Context = ctx
	return e
}
