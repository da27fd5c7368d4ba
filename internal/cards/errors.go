package cards

import "errors"

var (
	// ErrMissingConfig signals an absent credential or setting required
	// before any generation work can start.
	ErrMissingConfig = errors.New("missing configuration")

	// ErrBatchGeneration signals a failed or unparseable sentence-batch
	// call. Fatal for the rest of the run; earlier batches stay committed.
	ErrBatchGeneration = errors.New("sentence batch generation failed")

	// ErrSpeechSynthesis signals a failed audio call for one word. The
	// word is left unrecorded and picked up again on the next run.
	ErrSpeechSynthesis = errors.New("speech synthesis failed")

	// ErrImageSynthesis signals a failed illustration call. Absorbed: the
	// record is still written with an empty image reference.
	ErrImageSynthesis = errors.New("image synthesis failed")

	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("record not found")
)
