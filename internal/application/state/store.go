package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

const (
	runKeyPrefix      = "stepflow:run:"
	resourceKeyPrefix = "stepflow:resource:"
	cacheKeyPrefix    = "stepflow:cache:action:"
)

// Store composes the three storage tiers behind one facade.
type Store struct {
	hot     ports.HotStore
	warm    ports.WarmStore
	archive ports.Archive
	logger  *zap.Logger

	// TTL applied to run state and resources in the warm tier
	warmTTL time.Duration

	// outstanding async archive writes, drained on Close
	archives sync.WaitGroup
}

// New creates a tiered store. The archive may be nil, in which case cold
// writes degrade to a logged no-op.
func New(hot ports.HotStore, warm ports.WarmStore, archive ports.Archive, warmTTL time.Duration, logger *zap.Logger) *Store {
	return &Store{
		hot:     hot,
		warm:    warm,
		archive: archive,
		logger:  logger,
		warmTTL: warmTTL,
	}
}

// PutHot stores a value in the in-process tier.
func (s *Store) PutHot(key string, value interface{}) {
	s.hot.Put(key, value)
}

// GetHot reads a value from the in-process tier. A miss is plain absence.
func (s *Store) GetHot(key string) (interface{}, bool) {
	return s.hot.Get(key)
}

// PutWarm stores a value in the shared cache with an explicit TTL.
func (s *Store) PutWarm(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := s.warm.Put(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to put warm state: %w", err)
	}
	return nil
}

// GetWarm reads a value from the shared cache into out. A miss returns
// (false, nil): absence, not an error. It never falls through to cold
// storage; use GetWarmOrCold when the caller wants that.
func (s *Store) GetWarm(ctx context.Context, key string, out interface{}) (bool, error) {
	data, ok, err := s.warm.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to get warm state: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal warm state: %w", err)
	}
	return true, nil
}

// PutCold archives a value asynchronously. The write never blocks the
// caller and archival failures are logged, not surfaced: the run must not
// fail because the archive is down.
func (s *Store) PutCold(key string, value interface{}, metadata map[string]string) {
	if s.archive == nil {
		s.logger.Debug("no archive configured, dropping cold write", zap.String("key", key))
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to marshal cold value", zap.String("key", key), zap.Error(err))
		return
	}

	s.archives.Add(1)
	go func() {
		defer s.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archive.Archive(ctx, key, data, metadata); err != nil {
			s.logger.Error("archival failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// GetCold retrieves the latest archived version of a key.
func (s *Store) GetCold(ctx context.Context, key string, out interface{}) (bool, error) {
	if s.archive == nil {
		return false, nil
	}
	data, ok, err := s.archive.Retrieve(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to retrieve from archive: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal archived value: %w", err)
	}
	return true, nil
}

// GetWarmOrCold reads from the warm tier and, on a miss, explicitly checks
// the cold archive.
func (s *Store) GetWarmOrCold(ctx context.Context, key string, out interface{}) (bool, error) {
	ok, err := s.GetWarm(ctx, key, out)
	if err != nil || ok {
		return ok, err
	}
	return s.GetCold(ctx, key, out)
}

// SaveRun persists a run snapshot to the hot and warm tiers. Called after
// every state transition; terminal runs are additionally archived.
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	snapshot := run.Clone()
	key := runKeyPrefix + run.RunID

	s.hot.Put(key, snapshot)
	if err := s.PutWarm(ctx, key, snapshot, s.warmTTL); err != nil {
		return err
	}

	if snapshot.Status.Terminal() {
		s.PutCold(key, snapshot, map[string]string{
			"workflow_id": snapshot.WorkflowID,
			"status":      string(snapshot.Status),
		})
	}
	return nil
}

// LoadRun retrieves a run snapshot, hot tier first, then warm.
func (s *Store) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	key := runKeyPrefix + runID

	if v, ok := s.hot.Get(key); ok {
		if run, ok := v.(*domain.Run); ok {
			return run.Clone(), nil
		}
	}

	var run domain.Run
	ok, err := s.GetWarm(ctx, key, &run)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return &run, nil
}

// ListRuns returns every run currently held in the warm tier.
func (s *Store) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	keys, err := s.warm.Keys(ctx, runKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.Run, 0, len(keys))
	for _, key := range keys {
		var run domain.Run
		ok, err := s.GetWarm(ctx, key, &run)
		if err != nil || !ok {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

// PutResource publishes a resource reference: last write wins in the hot
// and warm tiers, and a new version is appended to the cold archive.
func (s *Store) PutResource(ctx context.Context, ref domain.ResourceRef) error {
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now()
	}
	key := resourceKeyPrefix + ref.Key

	s.hot.Put(key, ref)
	if err := s.PutWarm(ctx, key, ref, s.warmTTL); err != nil {
		return err
	}
	s.PutCold(key, ref, map[string]string{
		"run_id":  ref.RunID,
		"step_id": ref.StepID,
	})
	return nil
}

// GetResource resolves a logical key to its most recent reference.
func (s *Store) GetResource(ctx context.Context, key string) (*domain.ResourceRef, bool, error) {
	fullKey := resourceKeyPrefix + key

	if v, ok := s.hot.Get(fullKey); ok {
		if ref, ok := v.(domain.ResourceRef); ok {
			return &ref, true, nil
		}
	}

	var ref domain.ResourceRef
	ok, err := s.GetWarm(ctx, fullKey, &ref)
	if err != nil || !ok {
		return nil, false, err
	}
	return &ref, true, nil
}

// CacheActionResult caches an action result in the warm tier, keyed by
// action name and a digest of its parameters.
func (s *Store) CacheActionResult(ctx context.Context, action string, params map[string]interface{}, result interface{}, ttl time.Duration) error {
	return s.PutWarm(ctx, cacheKey(action, params), result, ttl)
}

// GetCachedResult looks up a previously cached action result.
func (s *Store) GetCachedResult(ctx context.Context, action string, params map[string]interface{}) (interface{}, bool, error) {
	var result interface{}
	ok, err := s.GetWarm(ctx, cacheKey(action, params), &result)
	if err != nil || !ok {
		return nil, false, err
	}
	return result, true, nil
}

// Close waits for outstanding archive writes to drain.
func (s *Store) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.archives.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for archive writes")
	}
}

// cacheKey digests action params into a stable cache key.
func cacheKey(action string, params map[string]interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + action + ":" + hex.EncodeToString(sum[:8])
}

// RunKey returns the storage key for a run ID. Exposed for audit
// subscribers that archive against the same namespace.
func RunKey(runID string) string {
	return runKeyPrefix + runID
}
