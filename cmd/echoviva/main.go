package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mukulanand/echoviva/internal/handler"
	appI18n "github.com/mukulanand/echoviva/internal/i18n"
	"github.com/mukulanand/echoviva/internal/model"
	"github.com/mukulanand/echoviva/internal/questions"
	"github.com/mukulanand/echoviva/internal/report"
	"github.com/mukulanand/echoviva/internal/scoring"
	"github.com/mukulanand/echoviva/internal/speech"
	"github.com/mukulanand/echoviva/internal/store"
	"github.com/mukulanand/echoviva/internal/viva"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "echoviva",
		Short: "Automated oral examination sessions with spoken questions and scored answers",
	}

	serve := serveCmd()
	root.AddCommand(serve, runCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `echoviva --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceP("questions", "q", []string{"questions/os.json"}, "Paths to question bank JSON files (repeatable)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("reports", "reports/user_reports.json", "Report history file path")
	f.Int("think-seconds", 5, "Silent think time before recording starts")
	f.Int("record-short", 8, "Recording window for short questions, seconds")
	f.Int("record-medium", 10, "Recording window for medium questions, seconds")
	f.Int("record-long", 12, "Recording window for long questions, seconds")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP session server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "echoviva.db", "SQLite database path")
	f.String("speech-url", "", "OpenAI-compatible speech API base URL (empty disables narration audio)")
	f.String("speech-key", "", "API key for the speech backend")
	f.String("tts-model", "", "Text-to-speech model name")
	f.String("stt-model", "", "Transcription model name")
	f.String("voice", "", "Narration voice")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a session in the terminal with typed answers",
		RunE:  runTerminal,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("name", "", "Candidate name (required)")
	f.String("id", "", "Candidate ID (required)")
	f.StringP("subject", "s", "", "Subject to examine (defaults to the first loaded bank)")
	f.IntP("num-questions", "n", 5, "Number of questions per session")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the report history as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("reports", "reports/user_reports.json", "Report history file path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ECHOVIVA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("echoviva")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/echoviva")
	v.AddConfigPath("/etc/echoviva")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func timingFrom(v *viper.Viper) model.Timing {
	t := model.DefaultTiming()
	t.ThinkSeconds = v.GetInt("think-seconds")
	t.RecordShort = v.GetInt("record-short")
	t.RecordMedium = v.GetInt("record-medium")
	t.RecordLong = v.GetInt("record-long")
	return t
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	catalog, err := questions.LoadCatalog(v.GetStringSlice("questions"))
	if err != nil {
		return fmt.Errorf("load question banks: %w", err)
	}
	if len(catalog.Subjects()) == 0 {
		return fmt.Errorf("no question banks loaded")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	reports := report.NewStore(v.GetString("reports"))
	timing := timingFrom(v)

	// Speech backend: synthesized narration plus Whisper transcription
	// when configured, silent otherwise. Typed answers work either way.
	var (
		speaker     speech.Speaker = speech.NullSpeaker{}
		transcriber speech.Transcriber
		h           *handler.Handler
	)
	if speechURL := v.GetString("speech-url"); speechURL != "" {
		backend := speech.NewOpenAI(
			speechURL,
			v.GetString("speech-key"),
			v.GetString("tts-model"),
			v.GetString("stt-model"),
			v.GetString("voice"),
		)
		transcriber = backend
		speaker = speech.NewSynthSpeaker(backend, func(text string, wav []byte) {
			if h != nil {
				h.NarrationSink(text, wav)
			}
		})
		slog.Info("speech backend configured", "url", speechURL)
	}
	inbox := speech.NewInbox(transcriber)

	machine := viva.New(speaker, inbox, scoring.NewEngine(), timing,
		viva.WithReportSink(reports))

	h = handler.New(db, machine, catalog, inbox, reports)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"subjects", catalog.Subjects(),
		"lang", lang,
		"think_seconds", timing.ThinkSeconds,
	)
	return http.ListenAndServe(addr, r)
}

func runTerminal(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	name := strings.TrimSpace(v.GetString("name"))
	candidateID := strings.TrimSpace(v.GetString("id"))
	if name == "" || candidateID == "" {
		return fmt.Errorf("candidate name and ID are required")
	}

	catalog, err := questions.LoadCatalog(v.GetStringSlice("questions"))
	if err != nil {
		return fmt.Errorf("load question banks: %w", err)
	}
	subjects := catalog.Subjects()
	if len(subjects) == 0 {
		return fmt.Errorf("no question banks loaded")
	}
	subject := v.GetString("subject")
	if subject == "" {
		subject = subjects[0]
	}
	bank, ok := catalog.Get(subject)
	if !ok {
		return fmt.Errorf("unknown subject %q, available: %s", subject, strings.Join(subjects, ", "))
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))

	reports := report.NewStore(v.GetString("reports"))
	machine := viva.New(
		speech.ConsoleSpeaker{W: os.Stdout},
		speech.ConsoleRecorder{In: bufio.NewReader(os.Stdin), Out: os.Stdout},
		scoring.NewEngine(),
		timingFrom(v),
		viva.WithReportSink(reports),
	)

	sess := &model.Session{
		ID:             uuid.NewString(),
		CandidateName:  name,
		CandidateID:    candidateID,
		Subject:        subject,
		QuestionSet:    bank.Sample(v.GetInt("num-questions")),
		Phase:          model.PhaseAnnouncing,
		IndicatorState: model.IndicatorIdle,
		IndicatorColor: model.VolumeLow,
		Status:         model.StatusInProgress,
		StartedAt:      time.Now(),
	}

	for {
		step, err := machine.Advance(ctx, sess)
		if err != nil {
			return fmt.Errorf("session step: %w", err)
		}
		switch step.Outcome {
		case viva.OutcomeThinking:
			fmt.Printf("\rThink time: %ds ", step.Countdown)
		case viva.OutcomeRecorded:
			fmt.Printf("\nScore: %.2f\n%s\n", step.Record.Score, step.Record.Feedback)
		case viva.OutcomeNoQuestions:
			fmt.Println(step.Message)
			return nil
		case viva.OutcomeFinished:
			fmt.Printf("\n%s\n", step.Message)
			printReport(os.Stdout, sess.Report)
			return nil
		}
		time.Sleep(step.Wait)
	}
}

func printReport(w io.Writer, r *model.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "\n%s (%s) - %s\n", r.User, r.StudentID, r.Subject)
	fmt.Fprintf(w, "Average score: %.2f\n", r.AverageScore)
	if len(r.WeakAreas) > 0 {
		fmt.Fprintln(w, "Areas to review:")
		for _, area := range r.WeakAreas {
			fmt.Fprintf(w, "  - %s\n", area)
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	history, err := report.NewStore(v.GetString("reports")).List()
	if err != nil {
		return fmt.Errorf("read report history: %w", err)
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
