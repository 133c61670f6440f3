package gemini

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"google.golang.org/genai"

	"multitool/internal/core"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 {
		f.parts = contents[0].Parts
	}
	return f.resp, f.err
}

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestCaption(t *testing.T) {
	gen := &fakeGenerator{resp: response(&genai.Part{Text: "  公園の写真です。 "})}
	c := newWithGenerator(gen, "", "")

	got, err := c.Caption(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "公園の写真です。" {
		t.Errorf("caption = %q", got)
	}
	if gen.model != DefaultVisionModel {
		t.Errorf("model = %q", gen.model)
	}
	if len(gen.parts) != 2 || gen.parts[1].InlineData == nil || gen.parts[1].InlineData.MIMEType != "image/jpeg" {
		t.Errorf("image not sent inline: %+v", gen.parts)
	}
}

func TestCaption_Errors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"api error", &fakeGenerator{err: errors.New("quota")}},
		{"empty text", &fakeGenerator{resp: response(&genai.Part{Text: "   "})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newWithGenerator(tt.gen, "", "").Caption(context.Background(), nil, "image/jpeg"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	gen := &fakeGenerator{resp: response(&genai.Part{InlineData: &genai.Blob{
		MIMEType: "audio/L16;codec=pcm;rate=16000",
		Data:     pcm,
	}})}
	c := newWithGenerator(gen, "", "tts-model")

	audio, err := c.Synthesize(context.Background(), "こんにちは", core.VoiceMale)
	if err != nil {
		t.Fatal(err)
	}
	if audio.Extension != ".wav" || audio.ContentType != "audio/wav" {
		t.Errorf("unexpected audio meta %+v", audio)
	}
	if gen.model != "tts-model" {
		t.Errorf("model = %q", gen.model)
	}
	if name := gen.config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; name != "Puck" {
		t.Errorf("voice = %q", name)
	}
	if len(audio.Data) != 44+len(pcm) {
		t.Fatalf("len = %d", len(audio.Data))
	}
	if rate := binary.LittleEndian.Uint32(audio.Data[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	c := newWithGenerator(&fakeGenerator{resp: response(&genai.Part{Text: "no audio"})}, "", "")
	if _, err := c.Synthesize(context.Background(), "x", core.VoiceFemale); err == nil {
		t.Fatal("expected error when no audio is returned")
	}
	if _, err := c.Synthesize(context.Background(), "x", "robot"); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEncodeWAV(t *testing.T) {
	wav := EncodeWAV([]byte{0, 0, 0, 0}, 24000)
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad header % x", wav[:44])
	}
	if size := binary.LittleEndian.Uint32(wav[4:8]); size != 40 {
		t.Errorf("riff size = %d", size)
	}
	if byteRate := binary.LittleEndian.Uint32(wav[28:32]); byteRate != 48000 {
		t.Errorf("byte rate = %d", byteRate)
	}
}

func TestSampleRate(t *testing.T) {
	tests := map[string]int{
		"audio/L16;codec=pcm;rate=24000": 24000,
		"audio/L16; rate=8000":           8000,
		"audio/L16":                      defaultSampleRate,
		"audio/L16;rate=abc":             defaultSampleRate,
	}
	for in, want := range tests {
		if got := sampleRate(in); got != want {
			t.Errorf("sampleRate(%q) = %d, want %d", in, got, want)
		}
	}
}
