package engines

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
	"github.com/nullp2ike/speech-practice/tts/cache"
)

func testTartu(endpoint string) *Tartu {
	cfg := tts.DefaultTartuConfig()
	cfg.Endpoint = endpoint
	cfg.Timeout = 2 * time.Second
	cfg.RequestsPerSecond = 1000
	return NewTartu(cfg, cache.DefaultConfig(), audio.NewStubContext())
}

func TestTartuSynthesize(t *testing.T) {
	payload := make([]byte, 256)
	copy(payload, "RIFF")

	var gotReq tartuRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	eng := testTartu(srv.URL)
	data, err := eng.synthesize(context.Background(), "Tere hommikust.", 0.5, "mari")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(payload) {
		t.Errorf("Expected %d bytes, got %d", len(payload), len(data))
	}

	if gotReq.Text != "Tere hommikust." {
		t.Errorf("Expected text forwarded, got %q", gotReq.Text)
	}
	if gotReq.Speaker != "mari" {
		t.Errorf("Expected speaker mari, got %q", gotReq.Speaker)
	}
	if gotReq.Speed != SpeedForRate(0.5) {
		t.Errorf("Expected speed %f, got %f", SpeedForRate(0.5), gotReq.Speed)
	}
}

func TestTartuRejectsTinyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	_, err := testTartu(srv.URL).synthesize(context.Background(), "Tere.", 0.5, "mari")

	var se *tts.SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("Expected SynthesisError, got %v", err)
	}
	if se.Kind != tts.KindInvalidAudio {
		t.Errorf("Expected invalid-audio kind, got %v", se.Kind)
	}
}

func TestTartuServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testTartu(srv.URL).synthesize(context.Background(), "Tere.", 0.5, "mari")

	var se *tts.SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("Expected SynthesisError, got %v", err)
	}
	if se.Kind != tts.KindHTTP {
		t.Errorf("Expected http kind, got %v", se.Kind)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", se.StatusCode)
	}
}

func TestTartuOfflineClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing is listening anymore

	_, err := testTartu(srv.URL).synthesize(context.Background(), "Tere.", 0.5, "mari")

	var se *tts.SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("Expected SynthesisError, got %v", err)
	}
	if se.Kind != tts.KindOffline {
		t.Errorf("Expected offline kind, got %v", se.Kind)
	}
}

func TestTartuEmptyText(t *testing.T) {
	_, err := testTartu("http://unused.invalid").synthesize(context.Background(), "   ", 0.5, "mari")
	if !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
}

func TestTartuSpeakers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speakers" {
			t.Errorf("Expected /speakers path, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"speakers":["mari","tambet","liivika"]}`))
	}))
	defer srv.Close()

	speakers, err := testTartu(srv.URL).Speakers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(speakers) != 3 || speakers[0] != "mari" {
		t.Errorf("Expected three speakers starting with mari, got %v", speakers)
	}
}
