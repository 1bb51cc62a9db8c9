package tts_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/engines/mock"
	"github.com/nullp2ike/speech-practice/tts/segment"
)

// recordingFeedback captures orchestrator notifications for assertions.
type recordingFeedback struct {
	mu        sync.Mutex
	navigated []int
	completed []int
	failures  chan string
	finished  chan struct{}
}

func newRecordingFeedback() *recordingFeedback {
	return &recordingFeedback{
		failures: make(chan string, 1),
		finished: make(chan struct{}, 1),
	}
}

func (f *recordingFeedback) Navigated(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, index)
}

func (f *recordingFeedback) SegmentCompleted(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, index)
}

func (f *recordingFeedback) PlaybackStarted(int) {}

func (f *recordingFeedback) PlaybackFailed(message string) {
	select {
	case f.failures <- message:
	default:
	}
}

func (f *recordingFeedback) SpeechFinished() {
	select {
	case f.finished <- struct{}{}:
	default:
	}
}

func (f *recordingFeedback) waitFinished(t *testing.T) {
	t.Helper()
	select {
	case <-f.finished:
	case msg := <-f.failures:
		t.Fatalf("playback failed: %s", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the reading to finish")
	}
}

func fixedFactory(engine tts.Synthesizing) tts.BackendFactory {
	return func(tts.Provider, tts.PlaybackSettings) (tts.Synthesizing, error) {
		return engine, nil
	}
}

func noPause() tts.PlaybackSettings {
	s := tts.DefaultSettings()
	s.PauseEnabled = false
	return s
}

func TestPlaySpeaksAllSegmentsInOrder(t *testing.T) {
	engine := mock.NewAuto(2*time.Millisecond, 0.05)
	feedback := newRecordingFeedback()

	orch, err := tts.NewOrchestrator("Alpha. Beta. Alpha.", "en", noPause(),
		fixedFactory(engine), tts.WithFeedback(feedback))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	feedback.waitFinished(t)

	expected := []string{"Alpha.", "Beta.", "Alpha."}
	texts := engine.Texts()
	if len(texts) != len(expected) {
		t.Fatalf("Expected %d speaks, got %d: %v", len(expected), len(texts), texts)
	}
	for i, want := range expected {
		if texts[i] != want {
			t.Errorf("speak %d: expected %q, got %q", i, want, texts[i])
		}
	}

	if orch.IsPlaying() {
		t.Error("Expected playback inactive after the last segment")
	}
	if orch.Index() != 2 {
		t.Errorf("Expected cursor on the last segment, got %d", orch.Index())
	}
}

func TestEchoPauseBetweenSegments(t *testing.T) {
	engine := mock.New()
	feedback := newRecordingFeedback()

	orch, err := tts.NewOrchestrator("One. Two.", "en", tts.DefaultSettings(),
		fixedFactory(engine), tts.WithFeedback(feedback),
		tts.WithPauseTick(5*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	if engine.CallCount() != 1 {
		t.Fatalf("Expected 1 speak, got %d", engine.CallCount())
	}

	// The pause interval matches the spoken duration.
	engine.CompleteCall(0, 0.06)
	if !orch.IsInPauseInterval() {
		t.Fatal("Expected a pause interval after the first segment")
	}
	if orch.PauseTimeRemaining() <= 0 {
		t.Error("Expected positive remaining pause time")
	}

	deadline := time.After(2 * time.Second)
	for engine.CallCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the next segment")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if orch.Index() != 1 {
		t.Errorf("Expected cursor on segment 1, got %d", orch.Index())
	}
}

func TestFailureStopsReading(t *testing.T) {
	engine := mock.New()
	engine.SetFail("synthesis failed: boom")
	feedback := newRecordingFeedback()

	orch, err := tts.NewOrchestrator("One. Two.", "en", noPause(),
		fixedFactory(engine), tts.WithFeedback(feedback))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()

	select {
	case msg := <-feedback.failures:
		if !strings.Contains(msg, "boom") {
			t.Errorf("Expected failure message to carry the cause, got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the failure notification")
	}

	if orch.IsPlaying() {
		t.Error("Expected playback inactive after a failure")
	}
	if !strings.Contains(orch.LastError(), "boom") {
		t.Errorf("Expected LastError to carry the cause, got %q", orch.LastError())
	}
	if engine.CallCount() != 1 {
		t.Errorf("Expected no advance past the failed segment, got %d speaks", engine.CallCount())
	}
}

func TestNavigationDuringInFlightSegment(t *testing.T) {
	engine := mock.New()

	orch, err := tts.NewOrchestrator("One. Two. Three.", "en", noPause(),
		fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	orch.Next()

	if orch.Index() != 1 {
		t.Fatalf("Expected cursor on segment 1, got %d", orch.Index())
	}
	if engine.CallCount() != 2 {
		t.Fatalf("Expected a new speak for the new segment, got %d", engine.CallCount())
	}

	// A late completion of the superseded segment must not advance again.
	engine.CompleteCall(0, 1.0)
	if orch.Index() != 1 {
		t.Errorf("Expected stale completion ignored, cursor at %d", orch.Index())
	}
	if engine.CallCount() != 2 {
		t.Errorf("Expected no extra speak from stale completion, got %d", engine.CallCount())
	}

	// The live segment completes and advances exactly once.
	engine.CompleteCall(1, 0.05)
	if orch.Index() != 2 {
		t.Errorf("Expected cursor on segment 2, got %d", orch.Index())
	}
	if engine.CallCount() != 3 {
		t.Errorf("Expected 3 speaks, got %d", engine.CallCount())
	}
}

func TestNavigationBounds(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("Only one sentence.", "en", noPause(),
		fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	if orch.CanGoForward() {
		t.Error("Expected no forward navigation on a single segment")
	}
	if orch.CanGoBack() {
		t.Error("Expected no backward navigation at the start")
	}

	orch.Next()
	orch.Previous()
	if orch.Index() != 0 {
		t.Errorf("Expected boundary navigation to be a no-op, cursor at %d", orch.Index())
	}
}

func TestEmptyDocument(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("", "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	if orch.IsPlaying() {
		t.Error("Expected Play on an empty document to be a no-op")
	}
	if engine.CallCount() != 0 {
		t.Errorf("Expected no speaks, got %d", engine.CallCount())
	}
	if orch.CanGoForward() || orch.CanGoBack() {
		t.Error("Expected no navigation on an empty document")
	}
}

func TestStopResetsPauseState(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("One. Two.", "en", tts.DefaultSettings(),
		fixedFactory(engine), tts.WithPauseTick(5*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	engine.CompleteCall(0, 5.0)
	if !orch.IsInPauseInterval() {
		t.Fatal("Expected a pause interval")
	}

	orch.Stop()
	if orch.IsPlaying() || orch.IsInPauseInterval() {
		t.Error("Expected Stop to clear playback and pause state")
	}
	if orch.PauseTimeRemaining() != 0 {
		t.Errorf("Expected no remaining pause, got %v", orch.PauseTimeRemaining())
	}
	if orch.Index() != 0 {
		t.Errorf("Expected cursor unchanged by Stop, got %d", orch.Index())
	}
}

func TestPauseFreezesEchoPauseAndResumeSkipsIt(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("One. Two.", "en", tts.DefaultSettings(),
		fixedFactory(engine), tts.WithPauseTick(5*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	engine.CompleteCall(0, 5.0)

	orch.Pause()
	if !orch.IsPaused() {
		t.Fatal("Expected paused state")
	}
	frozen := orch.PauseTimeRemaining()
	if frozen <= 0 {
		t.Fatal("Expected frozen remaining pause time")
	}
	time.Sleep(20 * time.Millisecond)
	if got := orch.PauseTimeRemaining(); got != frozen {
		t.Errorf("Expected remaining frozen at %v, got %v", frozen, got)
	}

	orch.Resume()
	if orch.IsInPauseInterval() {
		t.Error("Expected resume to skip the rest of the pause")
	}
	if engine.CallCount() != 2 {
		t.Errorf("Expected the next segment to be spoken, got %d speaks", engine.CallCount())
	}
	if orch.Index() != 1 {
		t.Errorf("Expected cursor on segment 1, got %d", orch.Index())
	}
}

func TestPauseResumeDuringPlayback(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("One. Two.", "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	orch.Pause()
	if !engine.Paused() {
		t.Error("Expected the backend to be paused")
	}
	orch.Resume()
	if engine.Paused() {
		t.Error("Expected the backend to be resumed")
	}
}

func TestSetGranularityKeepsPosition(t *testing.T) {
	engine := mock.New()
	text := "One one. Two two.\nThree three. Four four."

	orch, err := tts.NewOrchestrator(text, "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	if n := len(orch.Segments()); n != 4 {
		t.Fatalf("Expected 4 sentences, got %d", n)
	}

	orch.GoTo(2) // "Three three."
	orch.SetGranularity(segment.Paragraph)

	if n := len(orch.Segments()); n != 2 {
		t.Fatalf("Expected 2 paragraphs, got %d", n)
	}
	if orch.Index() != 1 {
		t.Errorf("Expected cursor in the second paragraph, got %d", orch.Index())
	}

	orch.SetGranularity(segment.Sentence)
	if orch.Index() != 2 {
		t.Errorf("Expected cursor back on the third sentence, got %d", orch.Index())
	}
}

func TestSetGranularityRestoresPlayback(t *testing.T) {
	engine := mock.New()
	text := "One one. Two two.\nThree three. Four four."

	orch, err := tts.NewOrchestrator(text, "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	if engine.CallCount() != 1 {
		t.Fatalf("Expected 1 speak, got %d", engine.CallCount())
	}

	orch.SetGranularity(segment.Paragraph)

	if !orch.IsPlaying() {
		t.Error("Expected playback to continue across the granularity change")
	}
	if engine.CallCount() != 2 {
		t.Fatalf("Expected the mapped segment respoken, got %d speaks", engine.CallCount())
	}
	if got := engine.Texts()[1]; got != "One one. Two two." {
		t.Errorf("Expected the containing paragraph spoken, got %q", got)
	}
}

func TestSetProviderRestoresPlayback(t *testing.T) {
	var mu sync.Mutex
	backends := map[tts.Provider]*mock.Engine{}
	factory := func(p tts.Provider, _ tts.PlaybackSettings) (tts.Synthesizing, error) {
		e := mock.New()
		mu.Lock()
		backends[p] = e
		mu.Unlock()
		return e, nil
	}

	orch, err := tts.NewOrchestrator("One. Two.", "en", noPause(), factory)
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	if err := orch.SetProvider(tts.ProviderTartu); err != nil {
		t.Fatal(err)
	}

	if !orch.IsPlaying() {
		t.Error("Expected playback to continue across the provider change")
	}
	mu.Lock()
	tartu := backends[tts.ProviderTartu]
	mu.Unlock()
	if tartu == nil || tartu.CallCount() != 1 {
		t.Fatal("Expected the current segment respoken on the new backend")
	}
	if got := tartu.Texts()[0]; got != "One." {
		t.Errorf("Expected the current segment respoken, got %q", got)
	}
}

func TestPauseDefersInFlightCompletion(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("One. Two.", "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	orch.Pause()

	// The segment finishes while paused; the reading must hold position.
	engine.CompleteCall(0, 0.05)
	if !orch.IsPaused() {
		t.Fatal("Expected paused state")
	}
	if orch.Index() != 0 {
		t.Errorf("Expected advance deferred while paused, cursor at %d", orch.Index())
	}
	if engine.CallCount() != 1 {
		t.Errorf("Expected no speak while paused, got %d", engine.CallCount())
	}

	orch.Resume()
	if orch.Index() != 1 {
		t.Errorf("Expected the deferred advance on resume, cursor at %d", orch.Index())
	}
	if engine.CallCount() != 2 {
		t.Errorf("Expected the next segment spoken after resume, got %d", engine.CallCount())
	}
}

func TestSetProviderRebuildsBackend(t *testing.T) {
	var mu sync.Mutex
	var built []tts.Provider
	factory := func(p tts.Provider, _ tts.PlaybackSettings) (tts.Synthesizing, error) {
		mu.Lock()
		built = append(built, p)
		mu.Unlock()
		return mock.New(), nil
	}

	settings := noPause()
	settings.VoiceIdentifier = "en_US-lessac-medium"

	orch, err := tts.NewOrchestrator("One.", "en", settings, factory)
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	if err := orch.SetProvider(tts.ProviderTartu); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(built) != 2 || built[0] != tts.ProviderPiper || built[1] != tts.ProviderTartu {
		t.Errorf("Expected piper then tartu, got %v", built)
	}

	s := orch.Settings()
	if !s.ProviderExplicitlyChosen {
		t.Error("Expected the switch to count as an explicit choice")
	}
	if s.VoiceIdentifier != "" {
		t.Errorf("Expected the backend-scoped voice cleared, got %q", s.VoiceIdentifier)
	}
}

func TestProviderPolicyAtConstruction(t *testing.T) {
	var got tts.Provider
	factory := func(p tts.Provider, _ tts.PlaybackSettings) (tts.Synthesizing, error) {
		got = p
		return mock.New(), nil
	}

	settings := noPause()
	settings.Provider = tts.ProviderAutomatic

	orch, err := tts.NewOrchestrator("Tere.", "et-EE", settings, factory)
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	if got != tts.ProviderTartu {
		t.Errorf("Expected the Estonian default provider, got %v", got)
	}
	if orch.Effective() != tts.ProviderTartu {
		t.Errorf("Expected effective provider tartu, got %v", orch.Effective())
	}
}

func TestCleanupIdempotent(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("One.", "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}

	orch.Cleanup()
	orch.Cleanup()

	orch.Play()
	if engine.CallCount() != 0 {
		t.Errorf("Expected Play after Cleanup to be a no-op, got %d speaks", engine.CallCount())
	}
}

func TestZeroDurationWithoutErrorAdvances(t *testing.T) {
	engine := mock.New()
	feedback := newRecordingFeedback()
	orch, err := tts.NewOrchestrator("One. Two.", "en", noPause(),
		fixedFactory(engine), tts.WithFeedback(feedback))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	engine.CompleteCall(0, 0)

	if orch.Index() != 1 {
		t.Errorf("Expected a clean zero-duration completion to advance, cursor at %d", orch.Index())
	}
	if engine.CallCount() != 2 {
		t.Errorf("Expected the next segment spoken, got %d", engine.CallCount())
	}
}

func TestSetRateAppliesToNextSegment(t *testing.T) {
	engine := mock.New()
	orch, err := tts.NewOrchestrator("One. Two.", "en", noPause(), fixedFactory(engine))
	if err != nil {
		t.Fatal(err)
	}
	defer orch.Cleanup()

	orch.Play()
	orch.SetRate(0.9)
	engine.CompleteCall(0, 0.05)

	calls := engine.Calls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 speaks, got %d", len(calls))
	}
	if calls[0].Rate != 0.5 {
		t.Errorf("Expected first speak at the initial rate, got %f", calls[0].Rate)
	}
	if calls[1].Rate != 0.9 {
		t.Errorf("Expected second speak at the new rate, got %f", calls[1].Rate)
	}
}
