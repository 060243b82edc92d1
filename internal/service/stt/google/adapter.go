// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-capture-service/internal/observability/logging"
	"voice-capture-service/internal/service/stt"
)

// Config holds the recognition settings sent with every stream.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	// Endpoint overrides the API endpoint, e.g. for an emulator.
	Endpoint string
}

// DefaultConfig returns the settings used for capture sessions.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to its enum value. Names are
// matched exactly; anything unknown falls back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]
	if !ok || v == int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_AudioEncoding(v)
}

// Client holds one Speech client shared by every recognition stream.
type Client struct {
	client *speech.Client
	cfg    Config
}

// NewClient dials Google Speech-to-Text.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: c, cfg: cfg}, nil
}

// Factory creates an adapter for languageTag; it satisfies stt.Factory.
func (c *Client) Factory(languageTag string) (stt.Adapter, error) {
	cfg := c.cfg
	if languageTag != "" {
		cfg.LanguageCode = languageTag
	}
	return &Adapter{client: c.client, cfg: cfg}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu      sync.Mutex
	stream  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
	stopped bool
	aborted bool
}

func (a *Adapter) streamingConfig() *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz: a.cfg.SampleRateHz,
					LanguageCode:    a.cfg.LanguageCode,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	}
}

// Start begins a streaming recognition session, sends the initial config
// and starts receiving results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	if a.stream != nil || a.aborted {
		a.mu.Unlock()
		return stt.NewError(stt.CodeAborted, errors.New("stream already started"))
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := a.client.StreamingRecognize(sctx)
	if err != nil {
		a.mu.Unlock()
		cancel()
		return classify(err)
	}
	// Send streaming config as the first message
	if err := stream.Send(a.streamingConfig()); err != nil {
		a.mu.Unlock()
		cancel()
		return classify(err)
	}
	a.stream = stream
	a.cancel = cancel
	a.mu.Unlock()

	go a.listen(stream, cb)
	cb.OnStart()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream == nil || a.stopped || a.aborted {
		return nil
	}
	err := a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return classify(err)
	}
	return nil
}

// Stop half-closes the stream so the service finalizes what it heard.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream == nil || a.stopped || a.aborted {
		return nil
	}
	a.stopped = true
	return a.stream.CloseSend()
}

// Abort cancels the stream.
func (a *Adapter) Abort() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aborted = true
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) isAborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}

// listen receives responses until the stream ends and forwards them to cb.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	log := logging.WithComponent("stt-google")
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if a.isAborted() {
			return
		}
		if err != nil {
			log.Debug().Err(err).Str("languageCode", a.cfg.LanguageCode).Msg("Recognition stream ended with error")
			cb.OnError(classify(err))
			return
		}
		if resp.GetError() != nil {
			cb.OnError(classify(status.ErrorProto(resp.GetError())))
			return
		}

		if results := convertResults(resp.GetResults()); len(results) > 0 {
			cb.OnResults(0, results)
		}
	}
}

// convertResults keeps the top alternative of every result.
func convertResults(in []*speechpb.StreamingRecognitionResult) []stt.Result {
	out := make([]stt.Result, 0, len(in))
	for _, r := range in {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		out = append(out, stt.Result{
			Transcript: alt.GetTranscript(),
			Confidence: float64(alt.GetConfidence()),
			IsFinal:    r.GetIsFinal(),
		})
	}
	return out
}

// classify maps a gRPC error to a recognition error code. Unauthenticated
// is a server credential fault, not a user refusal.
func classify(err error) *stt.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return stt.NewError(stt.CodeAborted, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return stt.NewError(stt.CodeNoSpeech, err)
	}

	st := status.Convert(err)
	switch st.Code() {
	case codes.PermissionDenied:
		return stt.NewError(stt.CodeNotAllowed, err)
	case codes.Canceled:
		return stt.NewError(stt.CodeAborted, err)
	case codes.DeadlineExceeded, codes.OutOfRange:
		return stt.NewError(stt.CodeNoSpeech, err)
	case codes.Unavailable:
		return stt.NewError(stt.CodeNetwork, err)
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(st.Message()), "language") {
			return stt.NewError(stt.CodeLanguageNotSupported, err)
		}
		return stt.NewError(stt.CodeUnknown, err)
	default:
		return stt.NewError(stt.CodeUnknown, err)
	}
}
