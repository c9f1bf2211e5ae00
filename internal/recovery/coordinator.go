package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/pkg/log"
)

const (
	DefaultMaxRetries = 3

	stateFileName = "recovery_state.json"
)

// OpContext identifies a guarded operation. FilePath, when set, names
// the file backed up before the attempt and restored after a failure.
type OpContext struct {
	Type     string
	FilePath string
	Key      string
}

func (o OpContext) opKey() string {
	return o.Type + ":" + o.FilePath + ":" + o.Key
}

// PendingOperation is one durable recovery-log entry. It carries enough
// to locate both the guarded file and its backup after a restart.
type PendingOperation struct {
	Operation  string    `json:"operation"`
	TargetPath string    `json:"targetPath,omitempty"`
	BackupPath string    `json:"backupPath,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type coordinatorState struct {
	PendingOperations map[string]PendingOperation `json:"pendingOperations"`
}

// Coordinator guards mutating file operations with backup, bounded
// retry and restore-on-failure. Pending operations are persisted so a
// crash mid-operation, or an operation that exhausted its retries, is
// visible after restart together with the backup taken for it.
type Coordinator struct {
	backupDir  string
	maxRetries int

	mu         sync.Mutex
	pending    map[string]PendingOperation
	retryCount map[string]int

	now func() time.Time
}

func NewCoordinator(backupDir string, maxRetries int) *Coordinator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Coordinator{
		backupDir:  backupDir,
		maxRetries: maxRetries,
		pending:    make(map[string]PendingOperation),
		retryCount: make(map[string]int),
		now:        time.Now,
	}
}

// Load restores persisted pending-operation state. A missing or
// unreadable state file is a clean start.
func (c *Coordinator) Load(ctx context.Context) error {
	data, err := os.ReadFile(c.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("recovery state unreadable, starting clean")
		return nil
	}

	var state coordinatorState
	if err := json.Unmarshal(data, &state); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("recovery state malformed, starting clean")
		return nil
	}

	c.mu.Lock()
	for key, op := range state.PendingOperations {
		c.pending[key] = op
	}
	c.mu.Unlock()
	return nil
}

// Do runs op under the recovery protocol: back up the target file,
// record the operation in the durable log, attempt up to maxRetries
// times with restore between attempts, and clear the log entry on
// success. After the final failure the error is wrapped in
// core.ErrMaxRetries and the log entry stays, pointing at the backup,
// so the failure is still identifiable on the next startup.
func (c *Coordinator) Do(ctx context.Context, opCtx OpContext, op func() error) error {
	logger := log.FromCtx(ctx).With().Str("operation", opCtx.Type).Logger()
	key := opCtx.opKey()

	backupPath, err := c.backup(opCtx.FilePath)
	if err != nil {
		logger.Warn().Err(err).Msg("backup failed, proceeding without one")
		backupPath = ""
	}

	c.markPending(ctx, key, PendingOperation{
		Operation:  opCtx.Type,
		TargetPath: opCtx.FilePath,
		BackupPath: backupPath,
		Timestamp:  c.now(),
	})

	var lastErr error
	for {
		c.mu.Lock()
		attempt := c.retryCount[key] + 1
		c.retryCount[key] = attempt
		c.mu.Unlock()

		err := op()
		if err == nil {
			c.clear(ctx, key)
			return nil
		}
		lastErr = err

		logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("guarded operation failed")

		if backupPath != "" {
			if err := c.restore(backupPath, opCtx.FilePath); err != nil {
				logger.Error().Err(err).Msg("backup restore failed")
			}
		}

		if attempt >= c.maxRetries {
			// Only the retry budget resets; the log entry is kept so
			// the failed operation and its backup survive a restart.
			c.clearRetries(key)
			return fmt.Errorf("%s: %w: %w", opCtx.Type, core.ErrMaxRetries, lastErr)
		}
	}
}

// PendingOperations lists operations that were started but never
// completed, including ones interrupted or exhausted before the last
// restart.
func (c *Coordinator) PendingOperations() []PendingOperation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PendingOperation, 0, len(c.pending))
	for _, op := range c.pending {
		out = append(out, op)
	}
	return out
}

// CleanupOldBackups removes backup files older than maxAge and returns
// how many were removed.
func (c *Coordinator) CleanupOldBackups(ctx context.Context, maxAge time.Duration) int {
	entries, err := os.ReadDir(c.backupDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Msg("backup dir unreadable")
		}
		return 0
	}

	cutoff := c.now().Add(-maxAge)
	var removed int
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".bak" {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.backupDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}

func (c *Coordinator) backup(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	if err := os.MkdirAll(c.backupDir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s.%d.bak", filepath.Base(filePath), c.now().UnixMilli())
	backupPath := filepath.Join(c.backupDir, name)
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", err
	}
	return backupPath, nil
}

func (c *Coordinator) restore(backupPath, filePath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0o600)
}

func (c *Coordinator) markPending(ctx context.Context, key string, op PendingOperation) {
	c.mu.Lock()
	c.pending[key] = op
	c.mu.Unlock()
	c.persistState(ctx)
}

func (c *Coordinator) clear(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.pending, key)
	delete(c.retryCount, key)
	c.mu.Unlock()
	c.persistState(ctx)
}

func (c *Coordinator) clearRetries(key string) {
	c.mu.Lock()
	delete(c.retryCount, key)
	c.mu.Unlock()
}

func (c *Coordinator) persistState(ctx context.Context) {
	c.mu.Lock()
	state := coordinatorState{PendingOperations: make(map[string]PendingOperation, len(c.pending))}
	for key, op := range c.pending {
		state.PendingOperations[key] = op
	}
	c.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.backupDir, 0o755); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("backup dir create failed")
		return
	}
	if err := os.WriteFile(c.statePath(), data, 0o600); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("recovery state persist failed")
	}
}

func (c *Coordinator) statePath() string {
	return filepath.Join(c.backupDir, stateFileName)
}
