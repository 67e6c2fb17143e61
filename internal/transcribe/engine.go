// Package transcribe provides the speech-to-text engine boundary.
package transcribe

import "context"

// Engine converts one audio segment file to transcript text.
// Implementations are invoked serially by the pipeline worker and must
// tolerate exactly-once invocation per segment.
type Engine interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}
