package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI backs the speech capability with an OpenAI-compatible API:
// text-to-speech for narration and Whisper for transcription.
type OpenAI struct {
	api      *openai.Client
	ttsModel openai.SpeechModel
	sttModel string
	voice    openai.SpeechVoice
}

// NewOpenAI creates a speech client. baseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(baseURL, apiKey, ttsModel, sttModel, voice string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if ttsModel == "" {
		ttsModel = string(openai.TTSModel1)
	}
	if sttModel == "" {
		sttModel = openai.Whisper1
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{
		api:      openai.NewClientWithConfig(config),
		ttsModel: openai.SpeechModel(ttsModel),
		sttModel: sttModel,
		voice:    openai.SpeechVoice(voice),
	}
}

// Synthesize renders text to WAV audio.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := o.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.ttsModel,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return data, nil
}

// Transcribe converts a WAV clip to text via Whisper.
func (o *OpenAI) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := o.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.sttModel,
		FilePath: "answer.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe answer: %w", err)
	}
	return resp.Text, nil
}

// ClipSink receives synthesized narration audio for the hosting surface
// to play.
type ClipSink func(text string, wav []byte)

// SynthSpeaker narrates by synthesizing audio and handing the clip to a
// sink. Speak returns once synthesis completes.
type SynthSpeaker struct {
	synth *OpenAI
	sink  ClipSink
}

// NewSynthSpeaker wires a synthesizer to a sink.
func NewSynthSpeaker(synth *OpenAI, sink ClipSink) *SynthSpeaker {
	return &SynthSpeaker{synth: synth, sink: sink}
}

func (s *SynthSpeaker) Speak(ctx context.Context, text string) error {
	wav, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if s.sink != nil {
		s.sink(text, wav)
	}
	return nil
}
