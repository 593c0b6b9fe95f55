// Package engine orchestrates the memory tiers. The Engine fans writes
// out to whichever tiers an utterance clears the admission threshold for,
// fans searches in across all tiers with deduplication and ranking, tracks
// conversation boundaries, and drives backups and long-term maintenance.
//
// One Engine is constructed per session and passed explicitly to whatever
// consumes it; there is no package-level instance.
package engine

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/jhollis/recollect/internal/backup"
	"github.com/jhollis/recollect/internal/config"
	"github.com/jhollis/recollect/internal/profile"
	"github.com/jhollis/recollect/internal/store"
	"github.com/jhollis/recollect/internal/tier"
)

// Tier identifiers used for status reporting and backup records.
const (
	TierWorking   = "working"
	TierShortTerm = "short_term"
	TierLongTerm  = "long_term"
	TierProfile   = "profile"
)

// State tracks the conversation-boundary state machine.
type State int

const (
	StateActive State = iota
	StateResetPending
)

func (s State) String() string {
	if s == StateResetPending {
		return "reset_pending"
	}
	return "active"
}

// Context carries the classification signals accompanying a write. The
// engine never classifies text itself; an external classifier supplies
// these and they are used only to derive importance and tags at admission.
type Context struct {
	Topics   []string `json:"topics,omitempty"`
	Emotions []string `json:"emotions,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

// TierStatus reports one tier for health checks.
type TierStatus struct {
	ItemCount   int       `json:"item_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Engine is the orchestrating facade over the tiers, the patient profile,
// and the backup manager.
type Engine struct {
	cfg config.Config
	log *log.Logger

	working *tier.Working
	short   *tier.ShortTerm
	long    *tier.LongTerm
	profile *profile.Store
	backups *backup.Manager

	highIntensity map[string]struct{}

	mu         sync.Mutex
	state      State
	lastBackup time.Time
	cron       *cron.Cron
}

// New builds an engine and its tiers on top of the given persistence
// medium. kv may be nil, in which case the engine runs purely in memory.
func New(cfg config.Config, kv store.KV, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}

	timeout := cfg.Persistence.Timeout
	e := &Engine{
		cfg:     cfg,
		log:     logger,
		working: tier.NewWorking(cfg.Memory.WorkingCapacity),
		short:   tier.NewShortTerm(cfg.Memory.ShortTermCapacity, kv, timeout, logger),
		long:    tier.NewLongTerm(cfg.Memory.LongTermCapacity, kv, timeout, logger),
		profile: profile.NewStore(cfg.Memory.SignificantEvents, kv, timeout, logger),
		backups: backup.NewManager(kv, cfg.Backup.History, cfg.Backup.QueueSize, timeout, logger),

		highIntensity: make(map[string]struct{}, len(cfg.Memory.HighIntensityEmotions)),
		state:         StateActive,
		lastBackup:    time.Now(),
	}
	for _, label := range cfg.Memory.HighIntensityEmotions {
		e.highIntensity[label] = struct{}{}
	}
	return e
}

// AddMemory derives an importance score for the utterance (unless an
// override is supplied), fans the item out to every tier it clears, and
// updates the patient profile for subject utterances. The tiers are
// written concurrently; the call returns once all tiers have admitted the
// item. Backups are triggered on a cadence and never block.
func (e *Engine) AddMemory(content string, speaker tier.Speaker, mctx *Context, override *float64) tier.Item {
	var sig Context
	if mctx != nil {
		sig = *mctx
	}

	importance := e.deriveImportance(content, sig)
	if override != nil {
		importance = clamp(*override, 0, 1)
	}

	item := tier.New(content, speaker, importance, sig.Topics, sig.Emotions)

	significant := SignificantContent(content)
	highIntensity := e.hasHighIntensity(sig.Emotions)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.short.Add(item)
	}()

	if importance >= e.cfg.Memory.WorkingThreshold || highIntensity {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.working.Add(item)
		}()
	}

	if importance >= e.cfg.Memory.LongTermThreshold || significant {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.long.Add(item)
		}()
	}

	if speaker == tier.SpeakerSubject {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.profile.RecordTopics(sig.Topics)
			e.profile.RecordEmotions(sig.Emotions)
			if importance >= e.cfg.Memory.SignificantThreshold {
				e.profile.AddSignificantEvent(item)
			}
		}()
	}

	wg.Wait()

	e.maybeBackup()

	e.log.Debug("memory added",
		"speaker", speaker,
		"importance", importance,
		"significant", significant,
		"words", wordCount(content))
	return item
}

// Search queries every tier concurrently, merges the results,
// deduplicates near-identical content, and ranks by recency, importance,
// and access weight. The only error surfaced is invalid parameters.
func (e *Engine) Search(params tier.SearchParams) ([]tier.Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	stores := []tier.Store{e.working, e.short, e.long}
	results := make([][]tier.Item, len(stores))

	var wg sync.WaitGroup
	for i, st := range stores {
		wg.Add(1)
		go func(i int, st tier.Store) {
			defer wg.Done()
			// Params were validated above; a tier error here would
			// only repeat that validation.
			items, err := st.Search(params)
			if err != nil {
				e.log.Warn("tier search failed", "err", err)
				return
			}
			results[i] = items
		}(i, st)
	}
	wg.Wait()

	var merged []tier.Item
	for _, r := range results {
		merged = append(merged, r...)
	}

	ranked := rank(dedupe(merged), time.Now())
	if params.Limit > 0 && len(ranked) > params.Limit {
		ranked = ranked[:params.Limit]
	}
	return ranked, nil
}

// IsNewConversation reports whether the utterance starts a fresh
// conversation: the short-term buffer is empty, the buffer has been idle
// past the conversation gap, or a greeting arrives on an already
// populated buffer. A true result arms a pending reset.
func (e *Engine) IsNewConversation(utterance string) bool {
	stLen := e.short.Len()

	fresh := false
	switch {
	case stLen == 0:
		fresh = true
	case time.Since(e.short.LastUpdated()) > e.cfg.Memory.ConversationGap:
		fresh = true
	case isGreeting(utterance) && stLen > 3:
		fresh = true
	}

	if fresh {
		e.mu.Lock()
		e.state = StateResetPending
		e.mu.Unlock()
	}
	return fresh
}

// ResetMemory snapshots and clears the working and short-term tiers. The
// long-term tier and the patient profile are never touched by a reset.
func (e *Engine) ResetMemory() {
	e.backups.Snapshot(TierWorking, e.working.Items())
	e.backups.Snapshot(TierShortTerm, e.short.Items())

	e.working.Clear()
	e.short.Clear()

	e.mu.Lock()
	e.state = StateActive
	e.mu.Unlock()

	e.log.Info("conversation reset", "kept_long_term", e.long.Len(), "kept_events", e.profile.EventCount())
}

// State returns the current conversation-boundary state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status reports per-tier item counts and last-update times.
func (e *Engine) Status() map[string]TierStatus {
	return map[string]TierStatus{
		TierWorking:   {ItemCount: e.working.Len(), LastUpdated: e.working.LastUpdated()},
		TierShortTerm: {ItemCount: e.short.Len(), LastUpdated: e.short.LastUpdated()},
		TierLongTerm:  {ItemCount: e.long.Len(), LastUpdated: e.long.LastUpdated()},
		TierProfile:   {ItemCount: e.profile.EventCount(), LastUpdated: e.profile.LastUpdated()},
	}
}

// Profile returns a copy of the patient profile for downstream
// personalization.
func (e *Engine) Profile() profile.Patient {
	return e.profile.Snapshot()
}

// SetPreference records a patient preference.
func (e *Engine) SetPreference(key, value string) {
	e.profile.SetPreference(key, value)
}

// Backups exposes the backup manager for recovery tooling.
func (e *Engine) Backups() *backup.Manager {
	return e.backups
}

// Close stops the maintenance schedule and drains pending backups.
func (e *Engine) Close() {
	e.StopMaintenance()
	e.backups.Close()
}

// maybeBackup snapshots all tiers when the backup interval has elapsed.
func (e *Engine) maybeBackup() {
	e.mu.Lock()
	due := time.Since(e.lastBackup) > e.cfg.Backup.Interval
	if due {
		e.lastBackup = time.Now()
	}
	e.mu.Unlock()

	if due {
		e.snapshotAll()
	}
}

// snapshotAll enqueues a snapshot of every tier. Non-blocking; drops
// under load.
func (e *Engine) snapshotAll() {
	e.backups.Snapshot(TierWorking, e.working.Items())
	e.backups.Snapshot(TierShortTerm, e.short.Items())
	e.backups.Snapshot(TierLongTerm, e.long.Items())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
