package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ConsoleSpeaker narrates by printing to a writer. Used by terminal
// sessions where no audio backend is available.
type ConsoleSpeaker struct {
	W io.Writer
}

func (c ConsoleSpeaker) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.W, "\n>> %s\n", text)
	return err
}

// ConsoleRecorder captures a typed answer from a reader, honoring the
// recording window.
type ConsoleRecorder struct {
	In  *bufio.Reader
	Out io.Writer
}

func (c ConsoleRecorder) Record(ctx context.Context, maxSeconds int) (Clip, error) {
	fmt.Fprintf(c.Out, "Your answer (%ds): ", maxSeconds)

	lines := make(chan string, 1)
	go func() {
		line, err := c.In.ReadString('\n')
		if err != nil && line == "" {
			lines <- ""
			return
		}
		lines <- strings.TrimSpace(line)
	}()

	timer := time.NewTimer(time.Duration(maxSeconds) * time.Second)
	defer timer.Stop()

	select {
	case line := <-lines:
		clip := Clip{Transcript: line}
		if line != "" {
			// Typed answers carry no audio energy; report a nominal
			// mid-tier volume so the indicator reacts.
			clip.Volume = 0.05
		}
		return clip, nil
	case <-timer.C:
		fmt.Fprintln(c.Out, "\n(time is up)")
		return Clip{}, nil
	case <-ctx.Done():
		return Clip{}, nil
	}
}
