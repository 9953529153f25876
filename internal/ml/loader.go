package ml

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// LoadState tracks the model lifecycle: Idle -> Loading -> Ready|LoadFailed.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateReady
	StateLoadFailed
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// ModelInfo describes the active model artifact.
type ModelInfo struct {
	Source     string    `json:"source"`
	Path       string    `json:"path"`
	Version    string    `json:"version"`
	InputName  string    `json:"input_name,omitempty"`
	OutputName string    `json:"output_name,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// OpenFunc fetches and opens a model artifact, yielding a ready scorer. It
// is invoked once per Load call; retry policy belongs to the caller.
type OpenFunc func(ctx context.Context) (Scorer, ModelInfo, error)

// Manager owns the asynchronous model load lifecycle and hands out the
// active scorer. A failed load leaves the manager not ready until a fresh
// Load succeeds; it never retries on its own.
type Manager struct {
	mu        sync.RWMutex
	state     LoadState
	scorer    Scorer
	info      ModelInfo
	loadErr   error
	open      OpenFunc
	metrics   MetricsInterface
	swapHooks []func()
}

// NewManager creates a manager in the idle state. metrics may be nil.
func NewManager(open OpenFunc, metrics MetricsInterface) *Manager {
	return &Manager{state: StateIdle, open: open, metrics: metrics}
}

// OnScorerSwap registers fn to run whenever the active scorer is replaced,
// by a successful Load or by UseFallback. Results derived from the old
// scorer must not outlive it, so callers hook cache invalidation here.
func (m *Manager) OnScorerSwap(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swapHooks = append(m.swapHooks, fn)
}

func (m *Manager) notifySwap() {
	m.mu.RLock()
	hooks := make([]func(), len(m.swapHooks))
	copy(hooks, m.swapHooks)
	m.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// Load starts an asynchronous artifact load and returns a channel that
// receives the outcome exactly once. A previously loaded scorer stays
// active until the new one is ready, then is closed.
func (m *Manager) Load(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	m.mu.Lock()
	if m.state == StateLoading {
		m.mu.Unlock()
		result <- fmt.Errorf("load already in progress")
		return result
	}
	m.state = StateLoading
	m.loadErr = nil
	m.mu.Unlock()

	go func() {
		scorer, info, err := m.open(ctx)

		m.mu.Lock()
		if err != nil {
			m.state = StateLoadFailed
			m.loadErr = err
			m.mu.Unlock()
			if m.metrics != nil {
				m.metrics.LoadFailuresInc()
			}
			log.Error().Err(err).Msg("model load failed")
			result <- err
			return
		}
		old := m.scorer
		m.scorer = scorer
		m.info = info
		m.state = StateReady
		m.mu.Unlock()

		if old != nil {
			old.Close()
		}
		m.notifySwap()
		if m.metrics != nil {
			m.metrics.LoadsInc()
			m.metrics.ModelAgeSet(time.Since(info.LoadedAt).Seconds())
		}
		log.Info().
			Str("source", info.Source).
			Str("version", info.Version).
			Msg("model loaded")
		result <- nil
	}()

	return result
}

// UseFallback installs the heuristic scorer and marks the manager ready.
// Explicit opt-in only; a failed artifact load never falls back on its own.
func (m *Manager) UseFallback() {
	m.mu.Lock()
	if m.scorer != nil {
		m.scorer.Close()
	}
	m.scorer = FallbackScorer{}
	m.info = ModelInfo{Version: "heuristic-fallback", LoadedAt: time.Now()}
	m.state = StateReady
	m.loadErr = nil
	m.mu.Unlock()

	m.notifySwap()
	log.Warn().Msg("using heuristic fallback scorer")
}

// Scorer returns the active scorer, ErrNotReady before any successful load,
// or the terminal load error after a failed one.
func (m *Manager) Scorer() (Scorer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch m.state {
	case StateReady:
		return m.scorer, nil
	case StateLoadFailed:
		return nil, m.loadErr
	default:
		return nil, ErrNotReady
	}
}

// State reports the current lifecycle state and the last load error, if any.
func (m *Manager) State() (LoadState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.loadErr
}

// Info returns metadata for the active model. Zero value while not ready.
func (m *Manager) Info() ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

// Close releases the active scorer.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scorer != nil {
		err := m.scorer.Close()
		m.scorer = nil
		m.state = StateIdle
		return err
	}
	return nil
}

// FetchModel resolves the artifact source to a local file path, downloading
// over HTTP into dataDir when source is a URL. Local paths are returned
// as-is after an existence check.
func FetchModel(ctx context.Context, client *resty.Client, source, dataDir string) (string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if _, err := os.Stat(source); err != nil {
			return "", &LoadError{Source: source, Err: err}
		}
		return source, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", &LoadError{Source: source, Err: err}
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "model.onnx"
	}
	dest := filepath.Join(dataDir, name)

	resp, err := client.R().SetContext(ctx).SetOutput(dest).Get(source)
	if err != nil {
		return "", &LoadError{Source: source, Err: err}
	}
	if resp.IsError() {
		return "", &LoadError{Source: source, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}

	log.Info().Str("source", source).Str("dest", dest).Msg("model artifact downloaded")
	return dest, nil
}

// OpenONNX composes FetchModel and NewONNXScorer into the OpenFunc the
// manager consumes in production.
func OpenONNX(client *resty.Client, source, dataDir, libraryPath string) OpenFunc {
	return func(ctx context.Context) (Scorer, ModelInfo, error) {
		path, err := FetchModel(ctx, client, source, dataDir)
		if err != nil {
			return nil, ModelInfo{}, err
		}
		scorer, err := NewONNXScorer(path, libraryPath)
		if err != nil {
			return nil, ModelInfo{}, err
		}

		version := "unknown"
		if st, err := os.Stat(path); err == nil {
			version = st.ModTime().UTC().Format("20060102-150405")
		}
		return scorer, ModelInfo{
			Source:     source,
			Path:       path,
			Version:    version,
			InputName:  scorer.inputName,
			OutputName: scorer.outputName,
			LoadedAt:   time.Now(),
		}, nil
	}
}
