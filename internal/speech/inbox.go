package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Submission is one answer handed to the inbox by the hosting surface:
// either raw WAV audio to transcribe, a ready transcript, or both.
type Submission struct {
	Transcript string
	WAV        []byte
}

// Inbox is a Recorder fed by the hosting surface. The surface captures
// the candidate's answer (browser microphone, typed fallback) and
// submits it; Record blocks until a submission arrives or the recording
// window closes.
type Inbox struct {
	transcriber Transcriber // optional
	ch          chan Submission
}

// NewInbox creates an inbox. transcriber may be nil, in which case only
// submissions that already carry a transcript produce answers.
func NewInbox(transcriber Transcriber) *Inbox {
	return &Inbox{
		transcriber: transcriber,
		ch:          make(chan Submission, 1),
	}
}

// Submit hands an answer to the pending Record call. A newer submission
// replaces an unconsumed older one.
func (i *Inbox) Submit(sub Submission) {
	for {
		select {
		case i.ch <- sub:
			return
		default:
			select {
			case <-i.ch:
			default:
			}
		}
	}
}

// Record waits up to maxSeconds for a submission. Timeouts and
// transcription failures degrade to an empty clip.
func (i *Inbox) Record(ctx context.Context, maxSeconds int) (Clip, error) {
	timer := time.NewTimer(time.Duration(maxSeconds) * time.Second)
	defer timer.Stop()

	select {
	case sub := <-i.ch:
		return i.clipFrom(ctx, sub), nil
	case <-timer.C:
		return Clip{}, nil
	case <-ctx.Done():
		return Clip{}, nil
	}
}

func (i *Inbox) clipFrom(ctx context.Context, sub Submission) Clip {
	clip := Clip{Transcript: strings.TrimSpace(sub.Transcript)}
	if len(sub.WAV) > 0 {
		clip.Volume = WavRMS(sub.WAV)
		if clip.Transcript == "" && i.transcriber != nil {
			text, err := i.transcriber.Transcribe(ctx, sub.WAV)
			if err != nil {
				slog.Warn("transcription failed", "error", err)
			} else {
				clip.Transcript = strings.TrimSpace(text)
			}
		}
	}
	return clip
}
