package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	tsotel "github.com/Strob0t/TraceScope/internal/adapter/otel"
	"github.com/Strob0t/TraceScope/internal/adapter/ws"
	"github.com/Strob0t/TraceScope/internal/domain"
	"github.com/Strob0t/TraceScope/internal/domain/diagram"
	"github.com/Strob0t/TraceScope/internal/domain/filter"
	"github.com/Strob0t/TraceScope/internal/domain/insight"
	"github.com/Strob0t/TraceScope/internal/domain/override"
	"github.com/Strob0t/TraceScope/internal/domain/timeline"
	"github.com/Strob0t/TraceScope/internal/domain/trace"
	"github.com/Strob0t/TraceScope/internal/port/broadcast"
	"github.com/Strob0t/TraceScope/internal/port/cache"
	"github.com/Strob0t/TraceScope/internal/port/messagequeue"
)

// Snapshot is one committed derivation of the session. It is immutable once
// published; readers may keep it as long as they like.
type Snapshot struct {
	SessionID     string            `json:"sessionId"`
	Generation    uint64            `json:"generation"`
	Events        []trace.Event     `json:"events"`
	IgnoredCounts map[string]int    `json:"ignoredCounts"`
	Ignored       int               `json:"ignored"`
	Timeline      timeline.Timeline `json:"timeline"`
	Diagram       string            `json:"diagram"`
	TraceMap      map[int]string    `json:"traceMap"`
	Insights      insight.Summary   `json:"insights"`
	Overrides     int               `json:"overrides"`
	ComputedAt    time.Time         `json:"computedAt"`

	file *trace.File
}

// Info describes the loaded session without its derived data.
type Info struct {
	Loaded          bool      `json:"loaded"`
	SessionID       string    `json:"sessionId,omitempty"`
	Source          string    `json:"source,omitempty"`
	Generation      uint64    `json:"generation"`
	Events          int       `json:"events"`
	Visible         int       `json:"visible"`
	Ignored         int       `json:"ignored"`
	Overrides       int       `json:"overrides"`
	VideoStartedAt  *float64  `json:"videoStartedAt,omitempty"`
	VideoDurationMs float64   `json:"videoDurationMs"`
	LoadedAt        time.Time `json:"loadedAt,omitempty"`
}

// SessionConfig holds the tunables of a session.
type SessionConfig struct {
	SlowThresholdMs float64
	CacheTTL        time.Duration
	SubjectPrefix   string
}

// inputs is a consistent copy of everything a derivation reads.
type inputs struct {
	sessionID  string
	generation uint64
	file       *trace.File
	overrides  map[string]override.Override
	apply      bool
	groups     []filter.CompiledGroup
	durationMs float64
}

// SessionService owns the one explicit session: the raw trace, the override
// table, the filter settings and the reported video duration. Every mutation
// bumps the generation and derives a new snapshot; a derivation that finishes
// after a newer mutation is discarded.
type SessionService struct {
	hub   broadcast.Broadcaster
	cfg   SessionConfig
	queue messagequeue.Publisher
	cache cache.Cache

	metrics *tsotel.Metrics
	now     func() time.Time

	mu         sync.Mutex
	file       *trace.File
	source     string
	loadedAt   time.Time
	sessionID  string
	generation uint64
	overrides  *override.Table
	filters    filter.Settings
	compiled   []filter.CompiledGroup
	durationMs float64

	snap atomic.Pointer[Snapshot]

	// announceMu orders announcements; announced is the newest generation sent.
	announceMu sync.Mutex
	announced  uint64
}

// NewSessionService creates a session with the given initial filter settings
// and no trace loaded.
func NewSessionService(hub broadcast.Broadcaster, filters filter.Settings, cfg SessionConfig) *SessionService {
	if cfg.SlowThresholdMs <= 0 {
		cfg.SlowThresholdMs = insight.DefaultSlowThresholdMs
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "tracescope.session"
	}
	return &SessionService{
		hub:       hub,
		cfg:       cfg,
		now:       time.Now,
		overrides: override.NewTable(),
		filters:   filters.Clone(),
		compiled:  filter.Compile(filters),
	}
}

// SetPublisher sets the optional broker publisher for session events.
func (s *SessionService) SetPublisher(p messagequeue.Publisher) { s.queue = p }

// SetCache sets the optional export cache.
func (s *SessionService) SetCache(c cache.Cache) { s.cache = c }

// SetMetrics sets the optional pipeline metrics.
func (s *SessionService) SetMetrics(m *tsotel.Metrics) { s.metrics = m }

// Load parses data as a trace file and makes it the active session. Overrides
// are cleared, the video duration is reset and cached exports of the previous
// session are dropped. On failure the previous session stays active and
// unchanged.
func (s *SessionService) Load(ctx context.Context, data []byte, source string) (*Snapshot, error) {
	ctx, span := tsotel.StartLoadSpan(ctx, source, len(data))
	defer span.End()

	f, err := trace.Parse(data)
	s.metrics.RecordLoad(ctx, err)
	if err != nil {
		span.RecordError(err)
		s.announceLoadFailure(ctx, source, err)
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	f.Events = trace.BackfillInternalIDs(f.Events)

	s.mu.Lock()
	s.file = f
	s.source = source
	s.loadedAt = s.now()
	s.sessionID = uuid.NewString()
	s.overrides.Reset()
	s.durationMs = 0
	in := s.bumpLocked()
	s.mu.Unlock()

	slog.Info("trace loaded", "session_id", in.sessionID, "source", source, "events", len(f.Events))
	if s.cache != nil {
		// Exports of the previous session can never be requested again.
		if err := s.cache.Clear(ctx); err != nil {
			slog.Warn("export cache clear failed", "error", err)
		}
	}
	return s.recompute(ctx, in)
}

// SetVideo records the video duration reported by the viewer. A negative
// duration is rejected; zero means unknown.
func (s *SessionService) SetVideo(ctx context.Context, durationMs float64) (*Snapshot, error) {
	if durationMs < 0 {
		return nil, fmt.Errorf("%w: video duration must be >= 0", domain.ErrValidation)
	}
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoTrace
	}
	s.durationMs = durationMs
	in := s.bumpLocked()
	s.mu.Unlock()
	return s.recompute(ctx, in)
}

// SetLabel overrides the label of the event with the given internal id.
func (s *SessionService) SetLabel(ctx context.Context, id, label string) (*Snapshot, error) {
	return s.editOverride(ctx, id, func(t *override.Table, ev trace.Event) {
		t.SetLabel(ev, label)
	})
}

// SetOverride applies a label edit, a removal edit or both as one change, so
// viewers never see one without the other. A nil field leaves that part of
// the override as it is.
func (s *SessionService) SetOverride(ctx context.Context, id string, label *string, removed *bool) (*Snapshot, error) {
	if label == nil && removed == nil {
		return nil, fmt.Errorf("%w: label or removed is required", domain.ErrValidation)
	}
	return s.editOverride(ctx, id, func(t *override.Table, ev trace.Event) {
		if label != nil {
			t.SetLabel(ev, *label)
		}
		if removed != nil {
			t.SetRemoved(ev, *removed)
		}
	})
}

// SetRemoved hides or restores the event with the given internal id.
func (s *SessionService) SetRemoved(ctx context.Context, id string, removed bool) (*Snapshot, error) {
	return s.editOverride(ctx, id, func(t *override.Table, ev trace.Event) {
		t.SetRemoved(ev, removed)
	})
}

// ClearOverride drops the override of one event. Clearing an event without an
// override is not an error.
func (s *SessionService) ClearOverride(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoTrace
	}
	if !s.overrides.Clear(id) {
		s.mu.Unlock()
		return s.current()
	}
	in := s.bumpLocked()
	s.mu.Unlock()
	return s.recompute(ctx, in)
}

func (s *SessionService) editOverride(ctx context.Context, id string, edit func(*override.Table, trace.Event)) (*Snapshot, error) {
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoTrace
	}
	idx, ok := trace.IndexByInternalID(s.file.Events)[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	edit(s.overrides, s.file.Events[idx])
	in := s.bumpLocked()
	s.mu.Unlock()
	return s.recompute(ctx, in)
}

// Overrides returns a copy of the override table.
func (s *SessionService) Overrides() map[string]override.Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides.Snapshot()
}

// SetFilters validates and installs new filter settings. Without a loaded
// trace the settings are stored and no snapshot is returned.
func (s *SessionService) SetFilters(ctx context.Context, settings filter.Settings) (*Snapshot, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.filters = settings.Clone()
	s.compiled = filter.Compile(settings)
	if s.file == nil {
		s.mu.Unlock()
		return nil, nil
	}
	in := s.bumpLocked()
	s.mu.Unlock()
	return s.recompute(ctx, in)
}

// Filters returns a copy of the current filter settings.
func (s *SessionService) Filters() filter.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

// ExportFilters encodes the current settings as a re-importable document.
func (s *SessionService) ExportFilters() ([]byte, error) {
	return filter.ExportSettings(s.Filters(), s.now())
}

// ImportFilters replaces the settings with an exported document.
func (s *SessionService) ImportFilters(ctx context.Context, data []byte) (*Snapshot, error) {
	settings, err := filter.ImportSettings(data)
	if err != nil {
		return nil, err
	}
	return s.SetFilters(ctx, settings)
}

// Snapshot returns the most recently committed snapshot.
func (s *SessionService) Snapshot() (*Snapshot, error) {
	return s.current()
}

func (s *SessionService) current() (*Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, domain.ErrNoTrace
	}
	return snap, nil
}

// Info describes the loaded session.
func (s *SessionService) Info() Info {
	s.mu.Lock()
	info := Info{
		Loaded:          s.file != nil,
		SessionID:       s.sessionID,
		Source:          s.source,
		Generation:      s.generation,
		Overrides:       s.overrides.Len(),
		VideoDurationMs: s.durationMs,
		LoadedAt:        s.loadedAt,
	}
	if s.file != nil {
		info.Events = len(s.file.Events)
		info.VideoStartedAt = s.file.VideoStartedAt
	}
	s.mu.Unlock()

	if snap := s.snap.Load(); snap != nil {
		info.Visible = len(snap.Events)
		info.Ignored = snap.Ignored
	}
	return info
}

// ExportTrace encodes the visible trace: overrides applied, removed events and
// filtered requests dropped, top-level fields such as videoStartedAt kept.
func (s *SessionService) ExportTrace(ctx context.Context) ([]byte, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.cached(ctx, snap, "trace.json", func() ([]byte, error) {
		return snap.file.WithEvents(snap.Events).Marshal()
	})
}

// ExportDiagram returns the Mermaid script of the current snapshot.
func (s *SessionService) ExportDiagram() (string, error) {
	snap, err := s.current()
	if err != nil {
		return "", err
	}
	return snap.Diagram, nil
}

// ExportTimeline encodes the timeline of the current snapshot.
func (s *SessionService) ExportTimeline(ctx context.Context) ([]byte, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.cached(ctx, snap, "timeline.json", func() ([]byte, error) {
		return json.Marshal(snap.Timeline)
	})
}

func (s *SessionService) cached(ctx context.Context, snap *Snapshot, format string, build func() ([]byte, error)) ([]byte, error) {
	key := fmt.Sprintf("%s:%d:%s", snap.SessionID, snap.Generation, format)
	if s.cache != nil {
		if data, found, err := s.cache.Get(ctx, key); err != nil {
			slog.Warn("export cache get failed", "key", key, "error", err)
		} else if found {
			return data, nil
		}
	}

	data, err := build()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
			slog.Warn("export cache set failed", "key", key, "error", err)
		}
	}
	return data, nil
}

// bumpLocked increments the generation and captures the derivation inputs.
// s.mu must be held.
func (s *SessionService) bumpLocked() inputs {
	s.generation++
	return inputs{
		sessionID:  s.sessionID,
		generation: s.generation,
		file:       s.file,
		overrides:  s.overrides.Snapshot(),
		apply:      s.filters.ApplyFilters,
		groups:     s.compiled,
		durationMs: s.durationMs,
	}
}

// recompute derives a snapshot from in and commits it unless a newer mutation
// happened meanwhile. It returns the snapshot readers see afterwards.
func (s *SessionService) recompute(ctx context.Context, in inputs) (*Snapshot, error) {
	// The inputs are already published; a caller going away must not leave
	// the newest generation uncommitted.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	snap, err := s.derive(ctx, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	committed := in.generation == s.generation
	if committed {
		s.snap.Store(snap)
	}
	s.mu.Unlock()

	s.metrics.RecordDerive(ctx, time.Since(start), committed)
	if !committed {
		slog.Debug("stale recomputation discarded", "session_id", in.sessionID, "generation", in.generation)
		return s.current()
	}

	s.metrics.RecordIgnored(ctx, snap.IgnoredCounts)
	s.announceCommitted(ctx, snap)
	return snap, nil
}

// announceCommitted announces snap unless a newer generation has already been
// announced, so subscribers never see generations go backwards.
func (s *SessionService) announceCommitted(ctx context.Context, snap *Snapshot) {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	if snap.Generation < s.announced {
		slog.Debug("superseded announcement skipped", "session_id", snap.SessionID, "generation", snap.Generation)
		return
	}
	s.announced = snap.Generation
	s.announce(ctx, snap)
}

func (s *SessionService) derive(ctx context.Context, in inputs) (*Snapshot, error) {
	ctx, span := tsotel.StartDeriveSpan(ctx, in.sessionID, in.generation, len(in.file.Events))
	defer span.End()

	_, fspan := tsotel.StartStageSpan(ctx, "filter")
	visible := override.Apply(in.file.Events, in.overrides)
	res := filter.Result{Kept: visible, IgnoredCounts: map[string]int{}}
	if in.apply {
		res = filter.ApplyCompiled(visible, in.groups)
	}
	fspan.End()

	snap := &Snapshot{
		SessionID:     in.sessionID,
		Generation:    in.generation,
		Events:        res.Kept,
		IgnoredCounts: res.IgnoredCounts,
		Ignored:       res.Ignored(),
		Overrides:     len(in.overrides),
		file:          in.file,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, sp := tsotel.StartStageSpan(gctx, "timeline")
		defer sp.End()
		snap.Timeline = timeline.Compute(res.Kept, in.file.VideoStartedAt, in.durationMs)
		return gctx.Err()
	})
	g.Go(func() error {
		_, sp := tsotel.StartStageSpan(gctx, "diagram")
		defer sp.End()
		snap.Diagram = diagram.Synthesize(res.Kept)
		snap.TraceMap = diagram.TraceMap(snap.Diagram)
		return gctx.Err()
	})
	g.Go(func() error {
		_, sp := tsotel.StartStageSpan(gctx, "insight")
		defer sp.End()
		snap.Insights = insight.Summarize(res.Kept, s.cfg.SlowThresholdMs)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("derive generation %d: %w", in.generation, err)
	}

	snap.ComputedAt = s.now()
	return snap, nil
}

func (s *SessionService) announce(ctx context.Context, snap *Snapshot) {
	requests := 0
	for _, ev := range snap.Events {
		if ev.IsRequest() {
			requests++
		}
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventSessionUpdated, ws.SessionUpdatedEvent{
			SessionID:  snap.SessionID,
			Generation: snap.Generation,
			Events:     len(snap.Events),
			Requests:   requests,
			Ignored:    snap.Ignored,
			Overrides:  snap.Overrides,
		})
	}

	s.publish(ctx, messagequeue.EventUpdated, messagequeue.SessionEventPayload{
		SessionID:  snap.SessionID,
		Generation: snap.Generation,
		Events:     len(snap.Events),
		Requests:   requests,
		Ignored:    snap.Ignored,
		Overrides:  snap.Overrides,
	})
}

func (s *SessionService) announceLoadFailure(ctx context.Context, source string, err error) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()

	slog.Warn("trace load failed", "source", source, "error", err)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventSessionLoadFailed, ws.SessionLoadFailedEvent{
			SessionID: sessionID,
			Error:     err.Error(),
		})
	}
	if sessionID == "" {
		// Nothing loaded yet; the broker schema requires a session id.
		return
	}
	s.publish(ctx, messagequeue.EventLoadFailed, messagequeue.SessionEventPayload{
		SessionID: sessionID,
		Error:     err.Error(),
	})
}

// publish sends a session event to the broker. Failures are logged; the broker
// is a side channel and never fails a session operation.
func (s *SessionService) publish(ctx context.Context, event string, p messagequeue.SessionEventPayload) {
	if s.queue == nil {
		return
	}
	p.ID = uuid.NewString()
	p.Type = event
	p.At = s.now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("marshal session event", "type", event, "error", err)
		return
	}
	subject := messagequeue.Subject(s.cfg.SubjectPrefix, event)
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "publish session event failed", "subject", subject, "error", err)
	}
}
