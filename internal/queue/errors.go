package queue

import "errors"

var (
	ErrJobNotFound          = errors.New("job not found")
	ErrNotRequeueable       = errors.New("only failed jobs can be requeued")
	ErrUnsupportedOperation = errors.New("operation not supported yet")
	ErrExtractionFailure    = errors.New("text extraction failed")
	ErrGenerationFailure    = errors.New("note generation failed")
)
