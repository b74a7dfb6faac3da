package wkhtmltox

import (
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Event kinds, as used in logs and metric labels.
const (
	kindError    = "error"
	kindWarning  = "warning"
	kindPhase    = "phase"
	kindProgress = "progress"
	kindFinished = "finished"
)

// MessageEvent carries an engine error or warning message.
type MessageEvent struct {
	Converter *Converter
	Message   string
	Arg       any
}

// PhaseEvent reports that the engine entered a new phase.
type PhaseEvent struct {
	Converter   *Converter
	Phase       int
	PhaseCount  int
	Description string
	Arg         any
}

// ProgressEvent reports progress within the current phase, in percent.
type ProgressEvent struct {
	Converter *Converter
	Percent   int
	Arg       any
}

// FinishedEvent is delivered once per conversion. Code is 0 on success
// and 1 on failure.
type FinishedEvent struct {
	Converter *Converter
	Code      int
	Arg       any
}

// OK reports whether the conversion succeeded.
func (e FinishedEvent) OK() bool { return e.Code == 0 }

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Events is an ordered set of listeners per event kind. Listeners run
// synchronously, in subscription order, on the goroutine that called
// Convert. No lock is held while they run, so a listener may subscribe,
// unsubscribe or query the converter.
//
// The zero value is ready to use.
type Events struct {
	mu       sync.Mutex
	seq      uint64
	log      *zap.Logger
	errors   []handler[MessageEvent]
	warnings []handler[MessageEvent]
	phases   []handler[PhaseEvent]
	progress []handler[ProgressEvent]
	finished []handler[FinishedEvent]
}

// OnError subscribes fn to engine error messages.
func (e *Events) OnError(fn func(MessageEvent)) (unsubscribe func()) {
	return subscribe(e, &e.errors, fn)
}

// OnWarning subscribes fn to engine warning messages.
func (e *Events) OnWarning(fn func(MessageEvent)) (unsubscribe func()) {
	return subscribe(e, &e.warnings, fn)
}

// OnPhaseChanged subscribes fn to phase transitions.
func (e *Events) OnPhaseChanged(fn func(PhaseEvent)) (unsubscribe func()) {
	return subscribe(e, &e.phases, fn)
}

// OnProgressChanged subscribes fn to progress updates.
func (e *Events) OnProgressChanged(fn func(ProgressEvent)) (unsubscribe func()) {
	return subscribe(e, &e.progress, fn)
}

// OnFinished subscribes fn to conversion completion.
func (e *Events) OnFinished(fn func(FinishedEvent)) (unsubscribe func()) {
	return subscribe(e, &e.finished, fn)
}

func subscribe[T any](e *Events, list *[]handler[T], fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	id := e.seq
	*list = append(*list, handler[T]{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		*list = slices.DeleteFunc(*list, func(h handler[T]) bool { return h.id == id })
	}
}

func (e *Events) logger() *zap.Logger {
	if e.log == nil {
		return zap.NewNop()
	}
	return e.log
}

func (e *Events) emitError(ev MessageEvent) { emit(e, &e.errors, kindError, ev) }
func (e *Events) emitWarning(ev MessageEvent) { emit(e, &e.warnings, kindWarning, ev) }
func (e *Events) emitPhase(ev PhaseEvent) { emit(e, &e.phases, kindPhase, ev) }
func (e *Events) emitProgress(ev ProgressEvent) { emit(e, &e.progress, kindProgress, ev) }
func (e *Events) emitFinished(ev FinishedEvent) { emit(e, &e.finished, kindFinished, ev) }

// emit calls a snapshot of the listeners taken before the first one runs.
// Listeners added during delivery see the next event.
func emit[T any](e *Events, list *[]handler[T], kind string, ev T) {
	e.mu.Lock()
	hs := slices.Clone(*list)
	e.mu.Unlock()

	for _, h := range hs {
		deliver(e.logger(), kind, h.fn, ev)
	}
}

// deliver runs one listener. A panic is logged and swallowed: it must not
// unwind through the engine's frames or skip the remaining listeners.
func deliver[T any](log *zap.Logger, kind string, fn func(T), ev T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("event listener panicked",
				zap.String("event", kind),
				zap.Any("panic", r))
		}
	}()
	fn(ev)
}
