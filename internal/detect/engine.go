package detect

import (
	"github.com/afonot/suricata/internal/config"
	"github.com/afonot/suricata/internal/log"
)

// SigKey identifies a signature for duplicate resolution.
type SigKey struct {
	GID uint32
	SID uint32
}

// Engine is the build-time detection engine context: it owns the
// signature list, the duplicate index and the per-build silent-error
// memory. All mutation happens from one goroutine during engine build;
// the keyword and buffer registries are process-wide and read-only.
type Engine struct {
	cfg            *config.DetectConfig
	classification *config.ClassificationConfig
	log            log.Logger

	signum uint32

	// SigList heads the engine's signature list; new signatures are
	// prepended.
	SigList *Signature

	dups map[SigKey]*Signature

	silentErrors map[KeywordID]bool

	// error buffer state of the last SigInit
	LastError        error
	SigErrorSilent   bool
	SigErrorOK       bool
	SigErrorRequires bool
}

// Option configures a new engine.
type Option func(*Engine)

// WithClassification attaches the classification config consumed by
// the classtype keyword.
func WithClassification(c *config.ClassificationConfig) Option {
	return func(e *Engine) { e.classification = c }
}

// NewEngine creates an engine build context.
func NewEngine(cfg *config.DetectConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = &config.Default().Detect
	}
	e := &Engine{
		cfg:          cfg,
		log:          log.GetLogger(),
		dups:         make(map[SigKey]*Signature),
		silentErrors: make(map[KeywordID]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cfg exposes the detect configuration to keyword setups.
func (e *Engine) Cfg() *config.DetectConfig {
	return e.cfg
}

// Classification exposes the classtype table to keyword setups.
func (e *Engine) Classification() *config.ClassificationConfig {
	return e.classification
}

// Log returns the engine logger.
func (e *Engine) Log() log.Logger {
	return e.log
}

// SigCount returns the number of signatures in the engine list.
func (e *Engine) SigCount() int {
	n := 0
	for s := e.SigList; s != nil; s = s.Next {
		n++
	}
	return n
}

func (e *Engine) resetSigError() {
	e.LastError = nil
	e.SigErrorSilent = false
	e.SigErrorOK = false
	e.SigErrorRequires = false
}
