package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/logging"
)

// ErrUpstream is returned when a backend call fails. The cause is logged,
// never returned.
var ErrUpstream = errors.New("upstream provider failure")

// Table maps platforms to the handlers of one capability.
type Table[H any] struct {
	capability string
	handlers   map[Platform]H
	timeout    time.Duration
	logger     *zap.Logger
}

func newTable[H any](capability string, timeout time.Duration, logger *zap.Logger) *Table[H] {
	return &Table[H]{
		capability: capability,
		handlers:   make(map[Platform]H),
		timeout:    timeout,
		logger:     logger,
	}
}

// Lookup returns the handler for platform.
func (t *Table[H]) Lookup(platform Platform) (H, bool) {
	h, ok := t.handlers[platform]
	return h, ok
}

// Platforms returns the platforms with a registered handler, sorted.
func (t *Table[H]) Platforms() []Platform {
	out := make([]Platform, 0, len(t.handlers))
	for p := range t.handlers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Registry holds one dispatch table per capability.
type Registry struct {
	Generators   *Table[Generator]
	Translators  *Table[Translator]
	Synthesizers *Table[Synthesizer]
	Transcribers *Table[Transcriber]
	Assistants   *Table[Assistants]

	backends []Backend
}

// NewRegistry creates an empty registry. Every dispatched call is bounded by timeout.
func NewRegistry(timeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("provider")
	return &Registry{
		Generators:   newTable[Generator](CapGenerate, timeout, logger),
		Translators:  newTable[Translator](CapTranslate, timeout, logger),
		Synthesizers: newTable[Synthesizer](CapSynthesize, timeout, logger),
		Transcribers: newTable[Transcriber](CapTranscribe, timeout, logger),
		Assistants:   newTable[Assistants](CapAssistants, timeout, logger),
	}
}

// Register detects which capability interfaces a backend implements
// and adds it to the matching tables.
func (r *Registry) Register(b Backend) {
	r.backends = append(r.backends, b)
	p := b.Platform()
	if h, ok := b.(Generator); ok {
		r.Generators.handlers[p] = h
	}
	if h, ok := b.(Translator); ok {
		r.Translators.handlers[p] = h
	}
	if h, ok := b.(Synthesizer); ok {
		r.Synthesizers.handlers[p] = h
	}
	if h, ok := b.(Transcriber); ok {
		r.Transcribers.handlers[p] = h
	}
	if h, ok := b.(Assistants); ok {
		r.Assistants.handlers[p] = h
	}
}

// ListBackends returns metadata about all registered backends.
func (r *Registry) ListBackends() []BackendInfo {
	infos := make([]BackendInfo, 0, len(r.backends))
	for _, b := range r.backends {
		info := BackendInfo{Platform: b.Platform()}
		if _, ok := b.(Generator); ok {
			info.Capabilities = append(info.Capabilities, CapGenerate)
		}
		if _, ok := b.(Translator); ok {
			info.Capabilities = append(info.Capabilities, CapTranslate)
		}
		if _, ok := b.(Synthesizer); ok {
			info.Capabilities = append(info.Capabilities, CapSynthesize)
		}
		if _, ok := b.(Transcriber); ok {
			info.Capabilities = append(info.Capabilities, CapTranscribe)
		}
		if _, ok := b.(Assistants); ok {
			info.Capabilities = append(info.Capabilities, CapAssistants)
		}
		infos = append(infos, info)
	}
	return infos
}

// Call resolves the handler for platform and invokes fn under the table's
// deadline. Handler errors and panics are logged and reported as ErrUpstream.
func Call[H, R any](ctx context.Context, t *Table[H], platform string, fn func(context.Context, H) (R, error)) (result R, err error) {
	p, perr := ParsePlatform(platform)
	if perr != nil {
		return result, perr
	}
	h, ok := t.Lookup(p)
	if !ok {
		return result, fmt.Errorf("%w: %s has no %s backend", ErrUnsupportedPlatform, p, t.capability)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("provider panic",
				logging.Platform(string(p)),
				logging.Capability(t.capability),
				zap.Any("panic", rec))
			var zero R
			result, err = zero, ErrUpstream
		}
	}()

	start := time.Now()
	result, err = fn(ctx, h)
	if err != nil {
		t.logger.Warn("provider call failed",
			logging.Platform(string(p)),
			logging.Capability(t.capability),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		var zero R
		return zero, ErrUpstream
	}
	t.logger.Debug("provider call",
		logging.Platform(string(p)),
		logging.Capability(t.capability),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
