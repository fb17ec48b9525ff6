package engine

import (
	"io"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/chronon/core"
)

// LogRecord is one committed log line. Within a batch, records arrive
// in sequence order because the conductor emits them during the
// sequence-ordered commit
type LogRecord struct {
	SimTime   core.SimTime
	WallNS    int64
	CID       core.ComponentID
	Component string
	Level     core.Level
	Message   string
}

// logSinkDepth is the MPSC channel depth between conductor and writer
const logSinkDepth = 1024

// logSink decouples the conductor from log I/O: records flow through a
// buffered channel into a single writer goroutine backed by zerolog.
// Full buffer drops the record and counts it; the conductor never
// blocks on a slow writer
type logSink struct {
	ch      chan LogRecord
	logger  zerolog.Logger
	glob    string
	min     core.Level
	dropped *atomic.Int64
	wg      sync.WaitGroup
}

func newLogSink(w io.Writer, min core.Level, glob string, dropped *atomic.Int64) *logSink {
	if w == nil {
		w = io.Discard
	}
	return &logSink{
		ch:      make(chan LogRecord, logSinkDepth),
		logger:  zerolog.New(w),
		glob:    glob,
		min:     min,
		dropped: dropped,
	}
}

func (s *logSink) start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for rec := range s.ch {
			s.write(rec)
		}
	}()
}

// emit filters and enqueues one record. Conductor only (single producer)
func (s *logSink) emit(rec LogRecord) {
	if rec.Level < s.min {
		return
	}
	if s.glob != "" {
		if ok, err := path.Match(s.glob, rec.Component); err != nil || !ok {
			return
		}
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
	}
}

// stop closes the channel and waits for the writer to drain
func (s *logSink) stop() {
	close(s.ch)
	s.wg.Wait()
}

func (s *logSink) write(rec LogRecord) {
	s.logger.WithLevel(zerologLevel(rec.Level)).
		Int64("sim_time", rec.SimTime.Nanoseconds()).
		Int64("wall_ns", rec.WallNS).
		Int32("cid", int32(rec.CID)).
		Str("component", rec.Component).
		Msg(rec.Message)
}

func zerologLevel(l core.Level) zerolog.Level {
	switch l {
	case core.LevelTrace:
		return zerolog.TraceLevel
	case core.LevelDebug:
		return zerolog.DebugLevel
	case core.LevelInfo:
		return zerolog.InfoLevel
	case core.LevelWarn:
		return zerolog.WarnLevel
	case core.LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// wallNow is split out so records carry one consistent clock source
func wallNow() int64 {
	return time.Now().UnixNano()
}
