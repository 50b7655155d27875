package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
)

type fakeAnalyzer struct {
	mu sync.Mutex

	chatResult    *repositories.AnalysisResult
	chatErr       error
	chatQueries   []repositories.AnalysisQuery
	transcript    string
	transcribeErr error
	statsErr      error
	statsNil      bool
	statsCalls    int
	uploadID      string
	uploadErr     error
}

func (f *fakeAnalyzer) UploadVideo(ctx context.Context, video io.Reader, filename string) (string, error) {
	return f.uploadID, f.uploadErr
}

func (f *fakeAnalyzer) ChatQuery(ctx context.Context, query repositories.AnalysisQuery) (*repositories.AnalysisResult, error) {
	f.mu.Lock()
	f.chatQueries = append(f.chatQueries, query)
	f.mu.Unlock()
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.chatResult != nil {
		return f.chatResult, nil
	}
	return &repositories.AnalysisResult{Text: "analysis of: " + query.Query}, nil
}

func (f *fakeAnalyzer) GetStats(ctx context.Context, videoID string) (*entities.StatsSnapshot, error) {
	f.mu.Lock()
	f.statsCalls++
	calls := f.statsCalls
	f.mu.Unlock()
	if f.statsErr != nil && calls == 1 {
		return nil, f.statsErr
	}
	if f.statsNil {
		return nil, nil
	}
	return &entities.StatsSnapshot{Possession: entities.TeamSplit{Home: 55, Away: 45}}, nil
}

func (f *fakeAnalyzer) GetFormations(ctx context.Context, videoID string, timestamp *float64) (*entities.TeamFormation, error) {
	return &entities.TeamFormation{}, nil
}

func (f *fakeAnalyzer) Transcribe(ctx context.Context, artifact entities.RecordingArtifact) (string, error) {
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeAnalyzer) queries() []repositories.AnalysisQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repositories.AnalysisQuery, len(f.chatQueries))
	copy(out, f.chatQueries)
	return out
}

type fakeSpeech struct {
	mu        sync.Mutex
	spoken    []string
	lastOpts  repositories.SpeakOptions
	speaking  bool
	cancelled int
	audioURL  string
}

func (f *fakeSpeech) Speak(ctx context.Context, text string, opts repositories.SpeakOptions) (string, error) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.lastOpts = opts
	f.mu.Unlock()
	return f.audioURL, nil
}

func (f *fakeSpeech) CancelSpeech() {
	f.mu.Lock()
	f.cancelled++
	f.mu.Unlock()
}

func (f *fakeSpeech) IsSpeaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

func (f *fakeSpeech) Listen(ctx context.Context) (string, error) {
	return "", repositories.ErrCapabilityUnsupported
}

type fakeDevice struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	released   int
}

func (f *fakeDevice) Acquire(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired++
	return nil
}

func (f *fakeDevice) Release() {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

func (f *fakeDevice) MIMEType() string {
	return "audio/webm"
}

type recordingSink struct {
	mu        sync.Mutex
	messages  []entities.Message
	statuses  []entities.InteractionStatus
	stats     []entities.StatsSnapshot
	audioURLs []string
}

func (s *recordingSink) MessageAppended(m entities.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

func (s *recordingSink) StatusChanged(st entities.InteractionStatus) {
	s.mu.Lock()
	s.statuses = append(s.statuses, st)
	s.mu.Unlock()
}

func (s *recordingSink) StatsUpdated(st entities.StatsSnapshot) {
	s.mu.Lock()
	s.stats = append(s.stats, st)
	s.mu.Unlock()
}

func (s *recordingSink) SpeechSynthesized(audioURL string) {
	s.mu.Lock()
	s.audioURLs = append(s.audioURLs, audioURL)
	s.mu.Unlock()
}

func newTestOrchestrator(t *testing.T, analyzer *fakeAnalyzer, speech *fakeSpeech, device *fakeDevice) (*Orchestrator, *recordingSink) {
	t.Helper()
	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}
	if speech == nil {
		speech = &fakeSpeech{}
	}
	if device == nil {
		device = &fakeDevice{}
	}
	sink := &recordingSink{}
	o := NewOrchestrator(analyzer, speech, device, sink, zaptest.NewLogger(t))
	return o, sink
}

func TestOrchestratorSeedsWelcomeMessage(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil, nil)

	messages := o.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 seeded message, got %d", len(messages))
	}
	if messages[0].Role != entities.MessageRoleAssistant {
		t.Errorf("expected assistant greeting, got role %q", messages[0].Role)
	}
	if !strings.Contains(messages[0].Text, "Upload a match clip") {
		t.Errorf("unexpected greeting text %q", messages[0].Text)
	}
}

func TestSubmitTextAppendsUserThenAssistant(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil, nil)

	o.SubmitText(context.Background(), "Why did the press break down?")

	messages := o.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[1].Role != entities.MessageRoleUser || messages[1].Text != "Why did the press break down?" {
		t.Errorf("unexpected user message %+v", messages[1])
	}
	if messages[2].Role != entities.MessageRoleAssistant {
		t.Errorf("expected assistant response, got %+v", messages[2])
	}
}

func TestSubmitTextIgnoresBlankInput(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil, nil)

	o.SubmitText(context.Background(), "")
	o.SubmitText(context.Background(), "   \t\n")

	if got := len(o.Messages()); got != 1 {
		t.Errorf("blank input must not grow the log, got %d messages", got)
	}
}

func TestSubmitTextFallbackOnChatFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{chatErr: errors.New("backend unreachable")}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	o.SubmitText(context.Background(), "What formation is this?")

	messages := o.Messages()
	if len(messages) != 3 {
		t.Fatalf("failed turn must still append user + fallback, got %d messages", len(messages))
	}
	last := messages[2]
	if last.Role != entities.MessageRoleAssistant || last.Text != fallbackResponseText {
		t.Errorf("expected fallback assistant message, got %+v", last)
	}
	if status := o.Status(); status.Analyzing {
		t.Error("analyzing flag must be cleared after a failed turn")
	}
}

func TestSubmitTextSetsAnalyzingDuringTurn(t *testing.T) {
	o, sink := newTestOrchestrator(t, nil, nil, nil)

	o.SubmitText(context.Background(), "Rate the home side's buildup")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var sawAnalyzing bool
	for _, st := range sink.statuses {
		if st.Analyzing {
			sawAnalyzing = true
		}
	}
	if !sawAnalyzing {
		t.Error("status never reported analyzing during the turn")
	}
	last := sink.statuses[len(sink.statuses)-1]
	if last.Analyzing {
		t.Error("analyzing must be clear once the turn settles")
	}
}

func TestSubmitTextCarriesVideoContext(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	o.AttachVideo(entities.VideoHandle{ID: "match-42"})
	o.UpdatePlaybackTime(73.5)
	o.SubmitText(context.Background(), "Who is out of position here?")

	queries := analyzer.queries()
	if len(queries) != 1 {
		t.Fatalf("expected 1 chat query, got %d", len(queries))
	}
	if queries[0].VideoID != "match-42" {
		t.Errorf("expected videoID match-42, got %q", queries[0].VideoID)
	}
	if queries[0].Timestamp == nil || *queries[0].Timestamp != 73.5 {
		t.Errorf("expected timestamp 73.5, got %v", queries[0].Timestamp)
	}
}

func TestSubmitTextSpeaksWhenVoiceEnabled(t *testing.T) {
	speech := &fakeSpeech{}
	o, _ := newTestOrchestrator(t, nil, speech, nil)

	o.SubmitText(context.Background(), "no speech expected")
	if len(speech.spoken) != 0 {
		t.Fatal("voice output disabled, nothing should be spoken")
	}

	o.ToggleSpeaking()
	o.SubmitText(context.Background(), "speech expected")
	if len(speech.spoken) != 1 {
		t.Fatalf("expected 1 spoken response, got %d", len(speech.spoken))
	}
	if status := o.Status(); status.Speaking {
		t.Error("speaking flag must be clear after playback resolves")
	}
}

func TestSubmitTextPublishesSynthesizedAudio(t *testing.T) {
	speech := &fakeSpeech{audioURL: "/audio/clip-1"}
	o, sink := newTestOrchestrator(t, nil, speech, nil)

	o.ToggleSpeaking()
	o.SubmitText(context.Background(), "talk to me")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.audioURLs) != 1 || sink.audioURLs[0] != "/audio/clip-1" {
		t.Errorf("synthesized audio reference must reach the sink, got %v", sink.audioURLs)
	}
}

func TestSetSpeakOptionsCarriedToSynthesis(t *testing.T) {
	speech := &fakeSpeech{}
	o, _ := newTestOrchestrator(t, nil, speech, nil)

	o.ToggleSpeaking()
	o.SetSpeakOptions(repositories.SpeakOptions{Rate: 1.5, Pitch: 0.8, Volume: 0.5})
	o.SubmitText(context.Background(), "speak with the new voice")

	speech.mu.Lock()
	defer speech.mu.Unlock()
	if len(speech.spoken) != 1 {
		t.Fatalf("expected 1 spoken response, got %d", len(speech.spoken))
	}
	want := repositories.SpeakOptions{Rate: 1.5, Pitch: 0.8, Volume: 0.5}
	if speech.lastOpts != want {
		t.Errorf("expected synthesis options %+v, got %+v", want, speech.lastOpts)
	}
}

func TestToggleSpeakingCancelsInFlightSpeech(t *testing.T) {
	speech := &fakeSpeech{speaking: true}
	o, _ := newTestOrchestrator(t, nil, speech, nil)

	o.ToggleSpeaking() // enable
	o.ToggleSpeaking() // disable while "speaking"

	if speech.cancelled != 1 {
		t.Errorf("expected 1 cancel, got %d", speech.cancelled)
	}
	if o.VoiceOutputEnabled() {
		t.Error("preference should be disabled after second toggle")
	}
}

func TestSubmitVoiceRoundTrip(t *testing.T) {
	analyzer := &fakeAnalyzer{transcript: "What formation is the home team playing?"}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	o.SubmitVoice(context.Background(), entities.RecordingArtifact{Data: []byte("pcm"), MIMEType: "audio/webm"})

	messages := o.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[1].Role != entities.MessageRoleUser || messages[1].Text != analyzer.transcript {
		t.Errorf("transcript must appear verbatim as the user message, got %+v", messages[1])
	}
}

func TestSubmitVoiceSilentOnTranscribeFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{transcribeErr: errors.New("recognition timed out")}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	o.SubmitVoice(context.Background(), entities.RecordingArtifact{Data: []byte("pcm")})

	if got := len(o.Messages()); got != 1 {
		t.Errorf("transcription failure must append nothing, got %d messages", got)
	}
}

func TestSubmitVoiceIgnoresEmptyTranscript(t *testing.T) {
	analyzer := &fakeAnalyzer{transcript: "   "}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	o.SubmitVoice(context.Background(), entities.RecordingArtifact{Data: []byte("pcm")})

	if got := len(o.Messages()); got != 1 {
		t.Errorf("empty transcript must append nothing, got %d messages", got)
	}
}

func TestToggleListeningRunsFullCaptureCycle(t *testing.T) {
	analyzer := &fakeAnalyzer{transcript: "How effective is their pressing?"}
	device := &fakeDevice{}
	o, _ := newTestOrchestrator(t, analyzer, nil, device)

	o.ToggleListening(context.Background())
	if !o.Status().Listening {
		t.Fatal("listening flag must be set after capture starts")
	}

	o.FeedAudio([]byte("chunk-1"))
	o.FeedAudio([]byte("chunk-2"))
	o.StopListening()

	if o.Status().Listening {
		t.Error("listening flag must be clear after stop")
	}
	if device.released != 1 {
		t.Errorf("device must be released exactly once, got %d", device.released)
	}
	messages := o.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected transcript to run a full turn, got %d messages", len(messages))
	}
	if messages[1].Text != analyzer.transcript {
		t.Errorf("unexpected user message %q", messages[1].Text)
	}
}

func TestToggleListeningNoOpWhileRecording(t *testing.T) {
	device := &fakeDevice{}
	o, _ := newTestOrchestrator(t, nil, nil, device)

	o.ToggleListening(context.Background())
	o.ToggleListening(context.Background())

	if device.acquired != 1 {
		t.Errorf("second toggle must not acquire again, got %d acquisitions", device.acquired)
	}
	o.StopListening()
}

func TestToggleListeningClearsFlagOnAcquireFailure(t *testing.T) {
	device := &fakeDevice{acquireErr: errors.New("microphone busy")}
	o, _ := newTestOrchestrator(t, nil, nil, device)

	o.ToggleListening(context.Background())

	if o.Status().Listening {
		t.Error("listening flag must be cleared when the device cannot be acquired")
	}
}

func TestStopListeningIdempotent(t *testing.T) {
	device := &fakeDevice{}
	o, _ := newTestOrchestrator(t, &fakeAnalyzer{transcript: "ok"}, nil, device)

	o.StopListening() // no session yet

	o.ToggleListening(context.Background())
	o.StopListening()
	o.StopListening()

	if device.released != 1 {
		t.Errorf("expected exactly one release, got %d", device.released)
	}
	if got := len(o.Messages()); got != 3 {
		t.Errorf("expected exactly one turn from the capture, got %d messages", got)
	}
}

func TestUploadVideoAnnouncesSuccess(t *testing.T) {
	analyzer := &fakeAnalyzer{uploadID: "vid-007"}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	videoID, err := o.UploadVideo(context.Background(), strings.NewReader("mp4"), "match.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videoID != "vid-007" {
		t.Errorf("expected vid-007, got %q", videoID)
	}

	messages := o.Messages()
	last := messages[len(messages)-1]
	if !strings.Contains(last.Text, "Video uploaded successfully") {
		t.Errorf("expected upload announcement, got %q", last.Text)
	}

	o.SubmitText(context.Background(), "what changed after the goal?")
	queries := analyzer.queries()
	if queries[0].VideoID != "vid-007" {
		t.Errorf("uploaded video must become the query context, got %q", queries[0].VideoID)
	}
}

func TestUploadVideoFailureAppendsNothing(t *testing.T) {
	analyzer := &fakeAnalyzer{uploadErr: errors.New("file too large")}
	o, _ := newTestOrchestrator(t, analyzer, nil, nil)

	if _, err := o.UploadVideo(context.Background(), strings.NewReader("mp4"), "match.mp4"); err == nil {
		t.Fatal("expected upload error")
	}
	if got := len(o.Messages()); got != 1 {
		t.Errorf("failed upload must not announce success, got %d messages", got)
	}
}

func TestStatsRefreshToleratesNilSnapshot(t *testing.T) {
	analyzer := &fakeAnalyzer{statsNil: true}
	o, sink := newTestOrchestrator(t, analyzer, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.RunStatsRefresh(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		analyzer.mu.Lock()
		calls := analyzer.statsCalls
		analyzer.mu.Unlock()
		if calls >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("refresh loop stopped ticking after a nil snapshot")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stats) != 0 {
		t.Errorf("nil snapshot must not publish stats, got %d updates", len(sink.stats))
	}
}

func TestStatsRefreshSurvivesFetchFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{statsErr: errors.New("stats endpoint down")}
	o, sink := newTestOrchestrator(t, analyzer, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.RunStatsRefresh(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		sink.mu.Lock()
		updates := len(sink.stats)
		sink.mu.Unlock()
		if updates >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tick after a failed fetch never delivered stats")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	analyzer.mu.Lock()
	calls := analyzer.statsCalls
	analyzer.mu.Unlock()
	if calls < 2 {
		t.Errorf("expected the failed tick to be followed by another, got %d calls", calls)
	}
	if o.Stats().Possession.Home != 55 {
		t.Errorf("latest snapshot not retained, got %+v", o.Stats())
	}
}

func TestConcurrentSubmitsAllSettle(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.SubmitText(context.Background(), "parallel question")
		}()
	}
	wg.Wait()

	if got := len(o.Messages()); got != 1+8*2 {
		t.Errorf("each turn must append exactly two messages, got %d total", got)
	}
	if o.Status().Analyzing {
		t.Error("analyzing must be clear once all turns settle")
	}
}
