package capture

import (
	"voice-capture-service/internal/service/stt"
)

// event is anything the session goroutine handles.
type event interface {
	isEvent()
}

type (
	recognizerReadyEvent   struct{ rec Recognizer }
	recognizerFailedEvent  struct{ err error }
	recognizerStartedEvent struct{}
	recognizerErrorEvent   struct{ err error }
	resultsEvent           struct {
		index   int
		results []stt.Result
	}

	audioReadyEvent  struct{ stream AudioStream }
	audioFailedEvent struct{ err error }
	volumeEvent      struct{ level float64 }

	silenceEvent struct{ gen uint64 }
	taskEvent    struct{ id uint64 }

	stopCommand   struct{}
	cancelCommand struct{}
	closeCommand  struct{}
)

func (recognizerReadyEvent) isEvent()   {}
func (recognizerFailedEvent) isEvent()  {}
func (recognizerStartedEvent) isEvent() {}
func (recognizerErrorEvent) isEvent()   {}
func (resultsEvent) isEvent()           {}
func (audioReadyEvent) isEvent()        {}
func (audioFailedEvent) isEvent()       {}
func (volumeEvent) isEvent()            {}
func (silenceEvent) isEvent()           {}
func (taskEvent) isEvent()              {}
func (stopCommand) isEvent()            {}
func (cancelCommand) isEvent()          {}
func (closeCommand) isEvent()           {}

// sink forwards recognizer callbacks to the session goroutine.
type sink struct {
	s *Session
}

func (k sink) OnStart() {
	k.s.post(recognizerStartedEvent{})
}

func (k sink) OnResults(resultIndex int, results []stt.Result) {
	cp := make([]stt.Result, len(results))
	copy(cp, results)
	k.s.post(resultsEvent{index: resultIndex, results: cp})
}

func (k sink) OnError(err error) {
	k.s.post(recognizerErrorEvent{err: err})
}
