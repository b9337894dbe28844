package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mukulanand/echoviva/internal/i18n"
	"github.com/mukulanand/echoviva/internal/model"
	"github.com/mukulanand/echoviva/internal/questions"
	"github.com/mukulanand/echoviva/internal/report"
	"github.com/mukulanand/echoviva/internal/speech"
	"github.com/mukulanand/echoviva/internal/store"
	"github.com/mukulanand/echoviva/internal/viva"
)

const maxUploadBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	machine *viva.Machine
	catalog *questions.Catalog
	inbox   *speech.Inbox
	reports *report.Store

	mu       sync.Mutex
	lastText string
	lastClip []byte
}

// New creates a new Handler.
func New(s *store.Store, m *viva.Machine, c *questions.Catalog, in *speech.Inbox, r *report.Store) *Handler {
	return &Handler{store: s, machine: m, catalog: c, inbox: in, reports: r}
}

// NarrationSink stores the latest synthesized clip so the hosting
// surface can fetch and play it.
func (h *Handler) NarrationSink(text string, wav []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastText = text
	h.lastClip = wav
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/subjects", h.handleSubjects)
	r.Get("/api/sessions", h.handleListSessions)
	r.Post("/api/sessions", h.handleCreateSession)
	r.Get("/api/sessions/{sessionID}", h.handleGetSession)
	r.Post("/api/sessions/{sessionID}/step", h.handleStep)
	r.Post("/api/sessions/{sessionID}/answer", h.handleAnswer)
	r.Get("/api/sessions/{sessionID}/report", h.handleReport)
	r.Get("/api/sessions/{sessionID}/audio", h.handleAudio)
	r.Get("/api/reports", h.handleReportHistory)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// sessionView is the client-facing session state. Reference answers are
// withheld until the question has been scored.
type sessionView struct {
	ID              string               `json:"id"`
	CandidateName   string               `json:"candidate_name"`
	CandidateID     string               `json:"candidate_id"`
	Subject         string               `json:"subject"`
	QuestionCount   int                  `json:"question_count"`
	CurrentIndex    int                  `json:"current_index"`
	Phase           model.Phase          `json:"phase"`
	ThinkCountdown  int                  `json:"think_countdown"`
	IndicatorState  model.IndicatorState `json:"indicator_state"`
	IndicatorColor  model.VolumeTier     `json:"indicator_color"`
	Status          model.SessionStatus  `json:"status"`
	CurrentQuestion string               `json:"current_question,omitempty"`
	Log             []model.LogEntry     `json:"log"`
	Records         []model.AnswerRecord `json:"records"`
}

func viewOf(s *model.Session) sessionView {
	v := sessionView{
		ID:             s.ID,
		CandidateName:  s.CandidateName,
		CandidateID:    s.CandidateID,
		Subject:        s.Subject,
		QuestionCount:  len(s.QuestionSet),
		CurrentIndex:   s.CurrentIndex,
		Phase:          s.Phase,
		ThinkCountdown: s.ThinkCountdown,
		IndicatorState: s.IndicatorState,
		IndicatorColor: s.IndicatorColor,
		Status:         s.Status,
		Log:            s.Log,
		Records:        s.Records,
	}
	if q, ok := s.CurrentQuestion(); ok {
		v.CurrentQuestion = q.Question
	}
	return v
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"subjects": h.catalog.Subjects()})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	CandidateName string `json:"candidate_name"`
	CandidateID   string `json:"candidate_id"`
	Subject       string `json:"subject"`
	NumQuestions  int    `json:"num_questions"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CandidateName == "" || req.CandidateID == "" {
		http.Error(w, "candidate name and ID are required", http.StatusBadRequest)
		return
	}
	bank, ok := h.catalog.Get(req.Subject)
	if !ok {
		http.Error(w, "unknown subject", http.StatusBadRequest)
		return
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}

	sess := &model.Session{
		ID:             uuid.NewString(),
		CandidateName:  req.CandidateName,
		CandidateID:    req.CandidateID,
		Subject:        req.Subject,
		QuestionSet:    bank.Sample(req.NumQuestions),
		Phase:          model.PhaseAnnouncing,
		IndicatorState: model.IndicatorIdle,
		IndicatorColor: model.VolumeLow,
		Status:         model.StatusInProgress,
		StartedAt:      time.Now(),
	}
	if err := h.store.SaveSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("session created", "session_id", sess.ID, "subject", sess.Subject,
		"questions", len(sess.QuestionSet))
	respondJSON(w, http.StatusCreated, viewOf(sess))
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	sess, err := h.store.LoadSession(chi.URLParam(r, "sessionID"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, viewOf(sess))
}

type stepResponse struct {
	Outcome   viva.Outcome        `json:"outcome"`
	Countdown int                 `json:"countdown"`
	Message   string              `json:"message,omitempty"`
	WaitMS    int64               `json:"wait_ms"`
	Record    *model.AnswerRecord `json:"record,omitempty"`
	Session   sessionView         `json:"session"`
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	step, err := h.machine.Advance(r.Context(), sess)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if step.Outcome == viva.OutcomeBusy {
		respondJSON(w, http.StatusConflict, stepResponse{Outcome: step.Outcome, Session: viewOf(sess)})
		return
	}
	if err := h.store.SaveSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, stepResponse{
		Outcome:   step.Outcome,
		Countdown: step.Countdown,
		Message:   step.Message,
		WaitMS:    step.Wait.Milliseconds(),
		Record:    step.Record,
		Session:   viewOf(sess),
	})
}

// handleAnswer accepts the candidate's answer: either multipart form
// data with an "audio" WAV file, or a JSON body with a transcript.
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if sess.Status != model.StatusInProgress {
		http.Error(w, i18n.T(r.Context(), "SessionFinished"), http.StatusConflict)
		return
	}

	var sub speech.Submission
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "invalid multipart body", http.StatusBadRequest)
			return
		}
		sub.Transcript = r.FormValue("transcript")
		if f, _, err := r.FormFile("audio"); err == nil {
			defer f.Close()
			wav, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
			if err != nil {
				http.Error(w, "reading audio", http.StatusBadRequest)
				return
			}
			sub.WAV = wav
		}
	} else {
		var body struct {
			Transcript string `json:"transcript"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		sub.Transcript = body.Transcript
	}
	if sub.Transcript == "" && len(sub.WAV) == 0 {
		http.Error(w, "empty submission", http.StatusBadRequest)
		return
	}

	h.inbox.Submit(sub)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if sess.Report == nil {
		http.Error(w, "report not ready", http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, sess.Report)
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	text, clip := h.lastText, h.lastClip
	h.mu.Unlock()
	if len(clip) == 0 {
		http.Error(w, "no narration available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Narration-Text", text)
	if _, err := w.Write(clip); err != nil {
		slog.Error("write narration clip", "error", err)
	}
}

func (h *Handler) handleReportHistory(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	respondJSON(w, http.StatusOK, reports)
}
