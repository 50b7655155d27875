package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitchside/server/domain/entities"
	"github.com/pitchside/server/domain/repositories"
)

const (
	// Fallback shown to the user when a chat query fails for any reason.
	fallbackResponseText = "Sorry, I'm having trouble processing your request. Please try again."

	welcomeText = "Hello! I can analyze football tactics and strategies. Upload a match clip to get started."

	uploadedText = "Video uploaded successfully! I'm now analyzing the match footage. You can ask me about formations, tactics, and key moments."

	// StatsRefreshInterval is the fixed period of the background stats pull.
	StatsRefreshInterval = 5 * time.Second
)

// EventSink receives the orchestrator's observable effects. The presentation
// layer only ever sees these three signals; errors never cross this
// boundary.
type EventSink interface {
	MessageAppended(entities.Message)
	StatusChanged(entities.InteractionStatus)
	StatsUpdated(entities.StatsSnapshot)
	SpeechSynthesized(audioURL string)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) MessageAppended(entities.Message)         {}
func (NopSink) StatusChanged(entities.InteractionStatus) {}
func (NopSink) StatsUpdated(entities.StatsSnapshot)      {}
func (NopSink) SpeechSynthesized(string)                 {}

// Orchestrator sequences every conversational turn and keeps the
// InteractionStatus flags consistent with real asynchronous progress.
// Recording, analyzing, and speaking are concurrent concerns: any
// combination may be live at once.
type Orchestrator struct {
	analyzer repositories.Analyzer
	speech   repositories.SpeechCapability
	device   repositories.CaptureDevice
	log      *entities.MessageLog
	sink     EventSink
	logger   *zap.Logger

	mu           sync.Mutex
	status       entities.InteractionStatus
	analyzing    int // count of in-flight chat queries
	voiceEnabled bool
	speakOpts    repositories.SpeakOptions
	video        *entities.VideoHandle
	capture      *VoiceCaptureSession
	stats        entities.StatsSnapshot
}

// NewOrchestrator wires the collaborators together and seeds the log with
// the assistant's greeting.
func NewOrchestrator(
	analyzer repositories.Analyzer,
	speech repositories.SpeechCapability,
	device repositories.CaptureDevice,
	sink EventSink,
	logger *zap.Logger,
) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}

	o := &Orchestrator{
		analyzer:  analyzer,
		speech:    speech,
		device:    device,
		log:       entities.NewMessageLog(),
		sink:      sink,
		logger:    logger,
		speakOpts: repositories.SpeakOptions{Rate: 0.9, Pitch: 1, Volume: 1},
	}

	o.append(entities.NewMessage(entities.MessageRoleAssistant, welcomeText))
	return o
}

// Messages returns the conversation log in append order
func (o *Orchestrator) Messages() []entities.Message {
	return o.log.Messages()
}

// Status returns the current interaction flags
func (o *Orchestrator) Status() entities.InteractionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Stats returns the latest display-state snapshot
func (o *Orchestrator) Stats() entities.StatsSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// VoiceOutputEnabled reports the spoken-response preference
func (o *Orchestrator) VoiceOutputEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voiceEnabled
}

// SetSpeakOptions tunes the synthesis voice for spoken responses
func (o *Orchestrator) SetSpeakOptions(opts repositories.SpeakOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.speakOpts = opts
}

// AttachVideo records an externally obtained video handle as the implicit
// subject of subsequent queries.
func (o *Orchestrator) AttachVideo(video entities.VideoHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.video = &video
}

// UpdatePlaybackTime records the viewer's current position in the footage
func (o *Orchestrator) UpdatePlaybackTime(seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.video != nil {
		o.video.CurrentTime = seconds
	}
}

// UploadVideo submits footage to the backend, attaches the resulting handle,
// and announces readiness in the conversation log.
func (o *Orchestrator) UploadVideo(ctx context.Context, video io.Reader, filename string) (string, error) {
	videoID, err := o.analyzer.UploadVideo(ctx, video, filename)
	if err != nil {
		o.logger.Error("Video upload failed", zap.Error(err))
		return "", err
	}

	o.mu.Lock()
	o.video = &entities.VideoHandle{ID: videoID}
	o.mu.Unlock()

	o.append(entities.NewMessage(entities.MessageRoleAssistant, uploadedText))

	o.logger.Info("Video attached to conversation", zap.String("videoID", videoID))
	return videoID, nil
}

// SubmitText runs one conversational turn. Empty or whitespace-only input is
// a no-op. The user message is appended synchronously before the query is
// dispatched; the analyzing flag is cleared on every settlement path. A
// failed query degrades to a single fallback assistant message and the error
// goes no further.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	o.append(entities.NewMessage(entities.MessageRoleUser, text))

	o.beginAnalyzing()
	defer o.endAnalyzing()

	query := repositories.AnalysisQuery{Query: text}
	o.mu.Lock()
	if o.video != nil {
		query.VideoID = o.video.ID
		if o.video.CurrentTime > 0 {
			ts := o.video.CurrentTime
			query.Timestamp = &ts
		}
	}
	o.mu.Unlock()

	result, err := o.analyzer.ChatQuery(ctx, query)
	if err != nil {
		o.logger.Error("Chat query failed", zap.Error(err))
		o.append(entities.NewMessage(entities.MessageRoleAssistant, fallbackResponseText))
		return
	}

	response := entities.NewMessage(entities.MessageRoleAssistant, result.Text)
	response.AudioURL = result.AudioURL
	response.Insights = result.Insights
	o.append(response)

	if result.Stats != nil {
		o.setStats(*result.Stats)
	}

	if o.VoiceOutputEnabled() && result.AudioURL == "" {
		o.speakResponse(ctx, result.Text)
	}
}

// SubmitVoice transcribes a recorded utterance and forwards non-empty text
// to SubmitText. A transcription failure is logged and appends nothing;
// unlike a failed chat query it leaves no trace in the conversation.
func (o *Orchestrator) SubmitVoice(ctx context.Context, artifact entities.RecordingArtifact) {
	text, err := o.analyzer.Transcribe(ctx, artifact)
	if err != nil {
		o.logger.Error("Voice transcription failed", zap.Error(err))
		return
	}

	if strings.TrimSpace(text) == "" {
		return
	}

	o.SubmitText(ctx, text)
}

// ToggleListening starts a voice capture session when none is active. The
// session's completion feeds SubmitVoice and clears the listening flag;
// exactly one stop event fires per start. If already recording this is a
// no-op: stopping is driven by StopListening, not by toggling again.
func (o *Orchestrator) ToggleListening(ctx context.Context) {
	o.mu.Lock()
	if o.status.Listening {
		o.mu.Unlock()
		return
	}

	session := NewVoiceCaptureSession(o.device, func(artifact entities.RecordingArtifact) {
		o.mu.Lock()
		o.status.Listening = false
		o.capture = nil
		status := o.status
		o.mu.Unlock()
		o.sink.StatusChanged(status)

		o.SubmitVoice(context.Background(), artifact)
	}, o.logger)

	o.capture = session
	o.status.Listening = true
	status := o.status
	o.mu.Unlock()
	o.sink.StatusChanged(status)

	if err := session.Start(ctx); err != nil {
		o.logger.Error("Failed to start voice capture", zap.Error(err))
		o.mu.Lock()
		o.status.Listening = false
		o.capture = nil
		status := o.status
		o.mu.Unlock()
		o.sink.StatusChanged(status)
	}
}

// FeedAudio routes an inbound audio chunk to the active capture session
func (o *Orchestrator) FeedAudio(chunk []byte) {
	o.mu.Lock()
	session := o.capture
	o.mu.Unlock()

	if session == nil {
		o.logger.Warn("Received audio chunk with no active capture session",
			zap.Int("size", len(chunk)))
		return
	}
	session.Write(chunk)
}

// StopListening finalizes the active capture session, if any
func (o *Orchestrator) StopListening() {
	o.mu.Lock()
	session := o.capture
	o.mu.Unlock()

	if session == nil {
		return
	}
	session.Stop()
}

// ToggleSpeaking flips the voice-output preference. Disabling while speech
// is in flight cancels the playback immediately rather than waiting for
// natural completion.
func (o *Orchestrator) ToggleSpeaking() {
	o.mu.Lock()
	wasEnabled := o.voiceEnabled
	o.voiceEnabled = !o.voiceEnabled
	o.mu.Unlock()

	if wasEnabled && o.speech.IsSpeaking() {
		o.speech.CancelSpeech()
	}
}

// RunStatsRefresh pulls display-state on a fixed interval until ctx is
// cancelled. A fetch failure is logged and never suppresses the next tick.
func (o *Orchestrator) RunStatsRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.refreshStats(ctx)
		}
	}
}

func (o *Orchestrator) refreshStats(ctx context.Context) {
	o.mu.Lock()
	var videoID string
	if o.video != nil {
		videoID = o.video.ID
	}
	o.mu.Unlock()

	stats, err := o.analyzer.GetStats(ctx, videoID)
	if err != nil {
		o.logger.Error("Stats refresh failed", zap.Error(err))
		return
	}
	if stats == nil {
		return
	}
	o.setStats(*stats)
}

func (o *Orchestrator) speakResponse(ctx context.Context, text string) {
	o.mu.Lock()
	o.status.Speaking = true
	opts := o.speakOpts
	status := o.status
	o.mu.Unlock()
	o.sink.StatusChanged(status)

	defer func() {
		o.mu.Lock()
		o.status.Speaking = false
		status := o.status
		o.mu.Unlock()
		o.sink.StatusChanged(status)
	}()

	audioURL, err := o.speech.Speak(ctx, text, opts)
	if err != nil {
		o.logger.Error("Speech synthesis failed", zap.Error(err))
		return
	}
	if audioURL != "" {
		o.sink.SpeechSynthesized(audioURL)
	}
}

func (o *Orchestrator) append(m entities.Message) {
	stored := o.log.Append(m)
	o.sink.MessageAppended(stored)
}

func (o *Orchestrator) beginAnalyzing() {
	o.mu.Lock()
	o.analyzing++
	o.status.Analyzing = true
	status := o.status
	o.mu.Unlock()
	o.sink.StatusChanged(status)
}

func (o *Orchestrator) endAnalyzing() {
	o.mu.Lock()
	o.analyzing--
	if o.analyzing <= 0 {
		o.analyzing = 0
		o.status.Analyzing = false
	}
	status := o.status
	o.mu.Unlock()
	o.sink.StatusChanged(status)
}

func (o *Orchestrator) setStats(stats entities.StatsSnapshot) {
	if stats.FetchedAt.IsZero() {
		stats.FetchedAt = time.Now()
	}
	o.mu.Lock()
	o.stats = stats
	o.mu.Unlock()
	o.sink.StatsUpdated(stats)
}
