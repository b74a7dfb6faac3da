package wkhtmltox

import (
	"bytes"
	"strings"

	"go.uber.org/zap"

	"github.com/alnah/go-wkhtmltox/internal/native"
)

// callbackBridge turns the engine's callbacks for one converter into
// events. It lives inside its Converter, so the functions registered with
// the engine stay valid until the converter's handle is destroyed.
//
// The engine calls back synchronously from inside Convert, on the calling
// goroutine, so the per-execution fields need no lock.
type callbackBridge struct {
	conv    *Converter
	handle  native.Handle
	lib     native.Library
	events  *Events
	log     *zap.Logger
	metrics *Metrics

	lastPhase int
	finished  bool
}

func (b *callbackBridge) callbacks() native.Callbacks {
	return native.Callbacks{
		Error:           b.onError,
		Warning:         b.onWarning,
		Finished:        b.onFinished,
		PhaseChanged:    b.onPhaseChanged,
		ProgressChanged: b.onProgressChanged,
	}
}

// reset prepares the bridge for a new execution.
func (b *callbackBridge) reset() {
	b.lastPhase = -1
	b.finished = false
}

// accept drops callbacks that name another converter.
func (b *callbackBridge) accept(conv native.Handle, kind string) bool {
	if conv == b.handle {
		return true
	}
	b.log.Warn("callback for foreign converter dropped",
		zap.String("event", kind),
		zap.Uintptr("handle", uintptr(conv)),
		zap.Uintptr("owner", uintptr(b.handle)))
	return false
}

// guard keeps a panic in the bridge itself from reaching native frames.
func (b *callbackBridge) guard(kind string) {
	if r := recover(); r != nil {
		b.log.Error("callback panicked", zap.String("event", kind), zap.Any("panic", r))
	}
}

func (b *callbackBridge) onError(conv native.Handle, msg []byte) {
	defer b.guard(kindError)
	b.message(conv, kindError, msg, b.events.emitError)
}

func (b *callbackBridge) onWarning(conv native.Handle, msg []byte) {
	defer b.guard(kindWarning)
	b.message(conv, kindWarning, msg, b.events.emitWarning)
}

func (b *callbackBridge) message(conv native.Handle, kind string, msg []byte, emit func(MessageEvent)) {
	if !b.accept(conv, kind) {
		return
	}
	text := cleanMessage(msg)
	if strings.TrimSpace(text) == "" {
		b.log.Debug("empty engine message dropped", zap.String("event", kind))
		return
	}
	b.log.Debug("engine message", zap.String("event", kind), zap.String("message", text))
	b.metrics.observeEvent(kind)
	emit(MessageEvent{Converter: b.conv, Message: text, Arg: b.conv.arg})
}

// cleanMessage stops at the first NUL and replaces invalid UTF-8.
func cleanMessage(msg []byte) string {
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	return strings.ToValidUTF8(string(msg), "\uFFFD")
}

func (b *callbackBridge) onFinished(conv native.Handle, val int) {
	defer b.guard(kindFinished)
	if !b.accept(conv, kindFinished) {
		return
	}
	if b.finished {
		b.log.Debug("duplicate finished callback dropped", zap.Int("value", val))
		return
	}
	b.finished = true

	// The engine passes non-zero on success.
	code := 1
	if val != 0 {
		code = 0
	}
	b.log.Debug("conversion finished", zap.Int("code", code))
	b.metrics.observeEvent(kindFinished)
	b.events.emitFinished(FinishedEvent{Converter: b.conv, Code: code, Arg: b.conv.arg})
}

func (b *callbackBridge) onPhaseChanged(conv native.Handle) {
	defer b.guard(kindPhase)
	if !b.accept(conv, kindPhase) {
		return
	}

	phase := b.lib.CurrentPhase(conv)
	if phase < b.lastPhase {
		b.log.Debug("out of order phase dropped", zap.Int("phase", phase), zap.Int("last", b.lastPhase))
		return
	}
	b.lastPhase = phase

	ev := PhaseEvent{
		Converter:   b.conv,
		Phase:       phase,
		PhaseCount:  b.lib.PhaseCount(conv),
		Description: b.lib.PhaseDescription(conv, phase),
		Arg:         b.conv.arg,
	}
	b.log.Debug("phase changed", zap.Int("phase", phase), zap.String("description", ev.Description))
	b.metrics.observeEvent(kindPhase)
	b.events.emitPhase(ev)
}

func (b *callbackBridge) onProgressChanged(conv native.Handle, val int) {
	defer b.guard(kindProgress)
	if !b.accept(conv, kindProgress) {
		return
	}
	b.metrics.observeEvent(kindProgress)
	b.events.emitProgress(ProgressEvent{Converter: b.conv, Percent: val, Arg: b.conv.arg})
}
