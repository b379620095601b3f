// Package updater gates sync passes on a lock file shared across process
// invocations. The file holds "<fails>:<unix-seconds>"; it arbitrates by
// carrying the last-sync timestamp, it is not a mutex.
package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const maxRetries = 5

// LockFileError reports a present but malformed lock file. Sync is refused
// until the file is removed or repaired; reads continue.
type LockFileError struct {
	Path string
	Err  error
}

func (e *LockFileError) Error() string { return fmt.Sprintf("lock file %s: %v", e.Path, e.Err) }

func (e *LockFileError) Unwrap() error { return e.Err }

// Updater holds the persisted update state (fails, last_success_at).
type Updater struct {
	lockFile       string
	updateInterval time.Duration
	log            *logrus.Logger

	fails       int
	lastSuccess time.Time
}

// New reads the lock file state. An absent file means "never synced" and the
// next IsUpdateExpired reports true; a malformed file is a *LockFileError.
func New(lockFile string, updateInterval time.Duration, log *logrus.Logger) (*Updater, error) {
	u := &Updater{
		lockFile:       lockFile,
		updateInterval: updateInterval,
		log:            log,
	}

	data, err := os.ReadFile(lockFile)
	if os.IsNotExist(err) {
		return u, nil
	}
	if err != nil {
		return nil, &LockFileError{Path: lockFile, Err: err}
	}

	fails, lastSuccess, err := parseState(string(data))
	if err != nil {
		return nil, &LockFileError{Path: lockFile, Err: err}
	}
	u.fails = fails
	u.lastSuccess = lastSuccess
	return u, nil
}

func parseState(raw string) (int, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("want <fails>:<unix-seconds>, got %q", raw)
	}
	fails, err := strconv.Atoi(parts[0])
	if err != nil || fails < 0 {
		return 0, time.Time{}, fmt.Errorf("invalid fails count %q", parts[0])
	}
	secs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("invalid timestamp %q", parts[1])
	}
	if secs == 0 {
		// never synced, only failures recorded so far
		return fails, time.Time{}, nil
	}
	return fails, time.Unix(secs, 0), nil
}

// IsUpdateExpired reports whether a sync pass should run now. Pending
// failures below the retry cap expire immediately; past the cap they back
// off until the regular interval elapses.
func (u *Updater) IsUpdateExpired() bool {
	if u.fails > 0 && u.fails < maxRetries {
		return true
	}
	if u.lastSuccess.IsZero() {
		return true
	}
	return time.Since(u.lastSuccess) >= u.updateInterval
}

// RecordOutcome persists the result of a sync pass. A failure increments
// fails and leaves last_success_at alone; success resets fails and stamps
// now. The write goes through a temp sibling renamed into place.
func (u *Updater) RecordOutcome(failed bool) error {
	if failed {
		u.fails++
	} else {
		u.fails = 0
		u.lastSuccess = time.Now()
	}
	return u.persist()
}

func (u *Updater) persist() error {
	if err := os.MkdirAll(filepath.Dir(u.lockFile), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	state := fmt.Sprintf("%d:%d", u.fails, u.lastSuccess.Unix())
	if u.lastSuccess.IsZero() {
		state = fmt.Sprintf("%d:0", u.fails)
	}

	tmp, err := os.CreateTemp(filepath.Dir(u.lockFile), filepath.Base(u.lockFile)+".*")
	if err != nil {
		return fmt.Errorf("create temp lock file: %w", err)
	}
	if _, err := tmp.WriteString(state); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close lock file: %w", err)
	}
	if err := os.Rename(tmp.Name(), u.lockFile); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace lock file: %w", err)
	}

	u.log.WithFields(logrus.Fields{"fails": u.fails, "last_success": u.lastSuccess}).
		Debug("lock file updated")
	return nil
}

// Fails returns the persisted consecutive failure count.
func (u *Updater) Fails() int { return u.fails }

// LastSuccess returns the last successful sync time; ok is false when no
// sync ever succeeded.
func (u *Updater) LastSuccess() (time.Time, bool) {
	return u.lastSuccess, !u.lastSuccess.IsZero()
}
