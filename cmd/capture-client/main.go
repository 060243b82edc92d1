// Command capture-client streams a WAV file (or silence) to a capture
// server and prints what comes back.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// 16kHz 16-bit mono is 32000 bytes/second; 100ms chunks are 3200 bytes.
const (
	chunkSize       = 3200
	chunkIntervalMs = 100
)

type serverMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Snapshot  json.RawMessage `json:"snapshot"`
	Cue       string          `json:"cue"`
	Result    json.RawMessage `json:"result"`
	Message   string          `json:"message"`
}

func main() {
	audioFile := flag.String("audio", "", "Path to WAV file (16kHz 16-bit mono); empty streams silence")
	serverURL := flag.String("server", "ws://localhost:8080/v1/capture", "Capture socket URL")
	lang := flag.String("lang", "en-US", "Language tag")
	deny := flag.Bool("deny", false, "Deny microphone access")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	audio, err := openAudio(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio")
	}
	defer audio.Close()

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverURL).Msg("Failed to connect")
	}
	defer conn.Close()

	done := make(chan struct{})
	started := make(chan struct{})
	go func() {
		defer close(done)
		startSignalled := false
		for {
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Info().Err(err).Msg("Connection closed")
				return
			}
			ev := log.Info().Str("type", msg.Type).Str("sessionId", msg.SessionID)
			switch msg.Type {
			case "snapshot":
				ev = ev.RawJSON("snapshot", msg.Snapshot)
			case "cue":
				ev = ev.Str("cue", msg.Cue)
				if msg.Cue == "start" && !startSignalled {
					startSignalled = true
					close(started)
				}
			case "result":
				ev = ev.RawJSON("result", msg.Result)
			case "error":
				ev = ev.Str("message", msg.Message)
			}
			ev.Msg("Received")
			if msg.Type == "close" {
				return
			}
		}
	}()

	if err := conn.WriteJSON(map[string]any{"type": "open", "lang": *lang}); err != nil {
		log.Fatal().Err(err).Msg("Failed to open session")
	}
	if err := conn.WriteJSON(map[string]any{"type": "audio", "granted": !*deny}); err != nil {
		log.Fatal().Err(err).Msg("Failed to answer permission")
	}

	select {
	case <-started:
	case <-done:
		return
	case <-time.After(10 * time.Second):
		log.Fatal().Msg("Recognizer did not start")
	}

	chunk := make([]byte, chunkSize)
	var chunks int
	for {
		select {
		case <-done:
			log.Info().Int("chunks", chunks).Msg("Session ended")
			return
		default:
		}
		n, err := io.ReadFull(audio, chunk)
		if n > 0 {
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:n&^1]); err != nil {
				log.Error().Err(err).Msg("Failed to send frame")
				return
			}
			chunks++
		}
		if err != nil {
			break
		}
		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	log.Info().Int("chunks", chunks).Msg("Audio finished, asking for the final result")
	_ = conn.WriteJSON(map[string]any{"type": "stop"})

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warn().Msg("Timed out waiting for close")
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// openAudio returns the PCM payload of a WAV file, or two seconds of
// silence when path is empty.
func openAudio(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(&silence{remaining: 2 * 32000}), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		f.Close()
		return nil, fmt.Errorf("%s is not a WAV file", path)
	}
	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	if audioFormat != 1 || numChannels != 1 || bitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("need 16-bit mono PCM, got format=%d channels=%d bits=%d",
			audioFormat, numChannels, bitsPerSample)
	}
	return f, nil
}

type silence struct {
	remaining int
}

func (s *silence) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	n := len(p)
	if n > s.remaining {
		n = s.remaining
	}
	for i := range p[:n] {
		p[i] = 0
	}
	s.remaining -= n
	return n, nil
}
