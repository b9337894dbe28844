// Package viva drives one candidate's oral examination. The hosting
// surface re-enters from scratch on every interaction cycle, so all
// progress lives in the externally persisted model.Session; each call
// to Advance performs at most one phase transition's worth of work and
// leaves the session consistent for the next re-entry.
package viva

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mukulanand/echoviva/internal/i18n"
	"github.com/mukulanand/echoviva/internal/model"
	"github.com/mukulanand/echoviva/internal/scoring"
	"github.com/mukulanand/echoviva/internal/speech"
)

// Scorer grades one transcript against a reference answer.
type Scorer interface {
	Evaluate(ctx context.Context, userAnswer, referenceAnswer string) (float64, string)
}

// ReportSink persists the final report. Append failures are logged and
// never block the report from being handed back to the caller.
type ReportSink interface {
	Append(model.Report) error
}

// Outcome classifies what one step accomplished.
type Outcome string

const (
	// OutcomeSpeaking means the question narration is in flight.
	OutcomeSpeaking Outcome = "speaking"
	// OutcomeThinking means the think-time countdown is running.
	OutcomeThinking Outcome = "thinking"
	// OutcomeListening means recording starts on the next step.
	OutcomeListening Outcome = "listening"
	// OutcomeRecorded means an answer was captured and scored.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeFinished means the session is terminal and the report is set.
	OutcomeFinished Outcome = "finished"
	// OutcomeNoQuestions means the session had no questions; nothing changed.
	OutcomeNoQuestions Outcome = "no_questions"
	// OutcomeBusy means another step for this session is still executing.
	OutcomeBusy Outcome = "busy"
)

// Step reports the result of one Advance call. Wait is the suggested
// delay before the hosting surface re-enters.
type Step struct {
	Outcome   Outcome
	Countdown int
	Record    *model.AnswerRecord
	Message   string
	Wait      time.Duration
}

// Machine advances viva sessions. Safe for use from concurrent
// re-entries: overlapping steps for the same session are rejected with
// OutcomeBusy rather than interleaved.
type Machine struct {
	speaker  speech.Speaker
	recorder speech.Recorder
	scorer   Scorer
	reports  ReportSink
	timing   model.Timing
	now      func() time.Time

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	announces map[string]chan struct{}
}

// Option configures a Machine.
type Option func(*Machine)

// WithReportSink sets the report persistence collaborator.
func WithReportSink(sink ReportSink) Option {
	return func(m *Machine) { m.reports = sink }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates a session state machine.
func New(speaker speech.Speaker, recorder speech.Recorder, scorer Scorer, timing model.Timing, opts ...Option) *Machine {
	m := &Machine{
		speaker:   speaker,
		recorder:  recorder,
		scorer:    scorer,
		timing:    timing,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
		announces: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Advance performs one step of the session. It never blocks longer than
// the current phase's designed delay; the recording phase blocks for at
// most the recording window.
func (m *Machine) Advance(ctx context.Context, s *model.Session) (Step, error) {
	lock := m.sessionLock(s.ID)
	if !lock.TryLock() {
		return Step{Outcome: OutcomeBusy}, nil
	}
	defer lock.Unlock()

	if s.Status == model.StatusFinished {
		return Step{Outcome: OutcomeFinished}, nil
	}

	if len(s.QuestionSet) == 0 {
		slog.Warn("step on session with no questions", "session", s.ID)
		return Step{
			Outcome: OutcomeNoQuestions,
			Message: i18n.T(ctx, "NoQuestionsSelected"),
		}, nil
	}

	if s.Complete() {
		return m.finish(ctx, s), nil
	}

	switch s.Phase {
	case model.PhaseThinking:
		return m.stepThinking(s), nil
	case model.PhaseRecording:
		return m.stepRecording(ctx, s), nil
	default:
		return m.stepAnnouncing(ctx, s), nil
	}
}

// stepAnnouncing dispatches the question narration once, then polls for
// its completion. The elapsed-time exit guarantees forward progress even
// if the completion signal never arrives.
func (m *Machine) stepAnnouncing(ctx context.Context, s *model.Session) Step {
	q, _ := s.CurrentQuestion()

	if !s.Announced {
		if len(s.Log) <= s.CurrentIndex {
			s.Log = append(s.Log, model.LogEntry{
				Question:   q.Question,
				UserAnswer: i18n.T(ctx, "WaitingForResponse"),
			})
		}

		text := i18n.Td(ctx, "QuestionAnnouncement", map[string]any{
			"Number": s.CurrentIndex + 1,
			"Text":   q.Question,
		})
		s.SpeakDuration = EstimateSpeechDuration(text)
		s.SpeechComplete = false
		s.Announced = true
		s.PhaseStart = m.now()
		s.IndicatorState = model.IndicatorPreparing

		m.dispatchSpeech(s.ID, text)
		return Step{Outcome: OutcomeSpeaking, Wait: time.Second}
	}

	if done := m.announceDone(s.ID); done != nil {
		select {
		case <-done:
			s.SpeechComplete = true
		default:
		}
	}

	deadline := time.Duration(s.SpeakDuration*float64(time.Second)) + m.timing.SpeechBuffer
	if s.SpeechComplete || m.now().Sub(s.PhaseStart) >= deadline {
		m.clearAnnounce(s.ID)
		s.Phase = model.PhaseThinking
		s.ThinkCountdown = m.timing.ThinkSeconds
		s.IndicatorState = model.IndicatorThinking
		s.PhaseStart = m.now()
		return Step{Outcome: OutcomeThinking, Countdown: s.ThinkCountdown, Wait: time.Second}
	}

	return Step{Outcome: OutcomeSpeaking, Wait: 500 * time.Millisecond}
}

// stepThinking burns one second of think time per call, then hands off
// to recording exactly once.
func (m *Machine) stepThinking(s *model.Session) Step {
	s.IndicatorState = model.IndicatorThinking
	if s.ThinkCountdown > 0 {
		s.ThinkCountdown--
		return Step{Outcome: OutcomeThinking, Countdown: s.ThinkCountdown, Wait: time.Second}
	}
	s.Phase = model.PhaseRecording
	s.IndicatorState = model.IndicatorListening
	return Step{Outcome: OutcomeListening}
}

// stepRecording blocks for the recording window, scores the transcript,
// and advances the cursor. Capability failures degrade to a zero score.
func (m *Machine) stepRecording(ctx context.Context, s *model.Session) Step {
	q, _ := s.CurrentQuestion()
	s.IndicatorState = model.IndicatorListening

	maxSec := m.timing.RecordSeconds(len(strings.Fields(q.Question)))
	clip, err := m.recorder.Record(ctx, maxSec)
	if err != nil {
		slog.Warn("recording failed", "session", s.ID, "error", err)
		clip = speech.Clip{}
	}
	transcript := strings.TrimSpace(clip.Transcript)

	var score float64
	var feedback string
	if transcript == "" {
		score, feedback = 0, i18n.T(ctx, "NoAnswerDetected")
	} else {
		score, feedback = m.scorer.Evaluate(ctx, transcript, q.ReferenceAnswer)
	}

	display := transcript
	if display == "" {
		display = i18n.T(ctx, "NoResponse")
	}
	if len(s.Log) > s.CurrentIndex {
		s.Log[s.CurrentIndex].UserAnswer = display
	} else {
		s.Log = append(s.Log, model.LogEntry{Question: q.Question, UserAnswer: display})
	}

	s.Records = append(s.Records, model.AnswerRecord{
		Question:      q.Question,
		UserAnswer:    transcript,
		CorrectAnswer: q.ReferenceAnswer,
		Score:         score,
		Feedback:      feedback,
	})
	s.IndicatorColor = model.TierForVolume(clip.Volume)

	s.CurrentIndex++
	s.Phase = model.PhaseAnnouncing
	s.ThinkCountdown = 0
	s.Announced = false
	s.SpeechComplete = false

	rec := s.Records[len(s.Records)-1]
	return Step{Outcome: OutcomeRecorded, Record: &rec, Wait: 1500 * time.Millisecond}
}

// finish builds the report, marks the session terminal, and hands the
// report to the sink. Sink failures are logged and otherwise ignored.
func (m *Machine) finish(ctx context.Context, s *model.Session) Step {
	report := scoring.GenerateReport(s.CandidateName, s.CandidateID, s.Subject, s.Records, m.now())
	s.Report = &report
	s.Status = model.StatusFinished
	s.IndicatorState = model.IndicatorIdle
	m.clearAnnounce(s.ID)

	if m.reports != nil {
		if err := m.reports.Append(report); err != nil {
			slog.Error("failed to persist report", "session", s.ID, "error", err)
		}
	}

	slog.Info("session finished",
		"session", s.ID,
		"candidate", s.CandidateID,
		"questions", len(s.Records),
		"average", report.AverageScore,
	)
	return Step{
		Outcome: OutcomeFinished,
		Message: i18n.T(ctx, "SessionFinished") + " " + i18n.Tp(ctx, "QuestionsAnswered", len(s.Records)),
		Wait:    800 * time.Millisecond,
	}
}

// dispatchSpeech starts narration on a detached goroutine. Its only
// observable effect on the machine is the one-shot completion channel
// polled by stepAnnouncing.
func (m *Machine) dispatchSpeech(sessionID, text string) {
	done := make(chan struct{})
	m.mu.Lock()
	m.announces[sessionID] = done
	m.mu.Unlock()

	go func() {
		if err := m.speaker.Speak(context.Background(), text); err != nil {
			slog.Warn("narration failed", "session", sessionID, "error", err)
		}
		close(done)
	}()
}

func (m *Machine) announceDone(sessionID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.announces[sessionID]
}

func (m *Machine) clearAnnounce(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.announces, sessionID)
}

func (m *Machine) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

// EstimateSpeechDuration estimates narration length in seconds: average
// speaking rate of 2.5 words per second plus a 30% pause buffer, clamped
// to [2,10] so pathological questions don't break pacing.
func EstimateSpeechDuration(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 1.0
	}
	d := float64(words) / 2.5 * 1.3
	return math.Min(math.Max(d, 2.0), 10.0)
}
