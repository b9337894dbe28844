// Package speech provides the narration and answer-capture capabilities
// the session state machine depends on. Implementations must degrade
// rather than fail: a missing microphone or synthesis backend yields an
// empty clip, never an error the machine has to recover from.
package speech

import "context"

// Clip is the result of one answer-capture attempt. Volume is the
// normalized RMS of the captured audio in [0,1]; it is 0 when unknown.
type Clip struct {
	Transcript string
	Volume     float64
}

// Speaker narrates text to the candidate. Speak is best effort; callers
// dispatch it on a detached goroutine and must not treat its error as
// fatal.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Recorder captures one spoken answer, blocking for at most maxSeconds.
// A timeout or unrecognized answer returns an empty Clip and no error.
type Recorder interface {
	Record(ctx context.Context, maxSeconds int) (Clip, error)
}

// Transcriber converts a recorded audio clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// NullSpeaker discards narration. Used when no synthesis backend is
// configured.
type NullSpeaker struct{}

func (NullSpeaker) Speak(context.Context, string) error { return nil }

// NullRecorder never hears anything. Used when no capture backend is
// configured; the machine degrades every answer to "no answer detected".
type NullRecorder struct{}

func (NullRecorder) Record(context.Context, int) (Clip, error) { return Clip{}, nil }
