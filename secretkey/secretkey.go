// Package secretkey owns the whitelisting secret key and its
// once-per-calendar-day change rule.
package secretkey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"iplogin/notify"
	"iplogin/options"
)

// DateLayout is the persisted format of the last-changed date.
const DateLayout = "2006-01-02"

// KeyLength is the length of keys produced by Generate.
const KeyLength = 20

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	ErrAlreadyChangedToday = errors.New("secret key already changed today")
	ErrEmptyKey            = errors.New("secret key must not be empty")
)

// State of the daily change gate.
type State int

const (
	Editable State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "editable"
}

// StateFor derives the gate state from the stored date and today's date.
// It resets on its own at midnight because nothing else is persisted.
func StateFor(storedDate, today string) State {
	if storedDate == today {
		return Locked
	}
	return Editable
}

// Notifier is called once per accepted key change.
type Notifier interface {
	Notify(newKey string, recipients []string, actor string) []notify.Outcome
}

// Result of a key change submission. Reason is nil when Accepted.
type Result struct {
	Accepted bool
	Reason   error
	Outcomes []notify.Outcome
}

// Record is the stored key and the date it last changed.
type Record struct {
	Key             string
	LastChangedDate string
}

type Manager struct {
	store    options.Store
	notifier Notifier
	now      func() time.Time
}

func NewManager(store options.Store, notifier Notifier) *Manager {
	return &Manager{store: store, notifier: notifier, now: time.Now}
}

// WithClock replaces the clock; the date is taken in the clock's location.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Today() string {
	return m.now().Format(DateLayout)
}

func (m *Manager) Current() (Record, error) {
	key, err := m.store.Get(options.SecretKey, "")
	if err != nil {
		return Record{}, fmt.Errorf("failed to read secret key: %w", err)
	}
	date, err := m.store.Get(options.KeyLastChangedDate, "")
	if err != nil {
		return Record{}, fmt.Errorf("failed to read key change date: %w", err)
	}
	return Record{Key: key, LastChangedDate: date}, nil
}

func (m *Manager) State() (State, error) {
	rec, err := m.Current()
	if err != nil {
		return Editable, err
	}
	return StateFor(rec.LastChangedDate, m.Today()), nil
}

// SubmitKeyChange stores newKey and today's date if the key has not been
// changed today, then notifies recipients. The old and new key are not
// compared: resubmitting the current key still uses up the day.
func (m *Manager) SubmitKeyChange(newKey string, recipients []string, actor string) (Result, error) {
	if newKey == "" {
		return Result{Reason: ErrEmptyKey}, nil
	}

	today := m.Today()
	rec, err := m.Current()
	if err != nil {
		return Result{}, err
	}
	if StateFor(rec.LastChangedDate, today) == Locked {
		return Result{Reason: ErrAlreadyChangedToday}, nil
	}

	if err := m.store.Set(options.SecretKey, newKey); err != nil {
		return Result{}, fmt.Errorf("failed to write secret key: %w", err)
	}
	if err := m.store.Set(options.KeyLastChangedDate, today); err != nil {
		return Result{}, fmt.Errorf("failed to write key change date: %w", err)
	}

	res := Result{Accepted: true}
	if m.notifier != nil {
		res.Outcomes = m.notifier.Notify(newKey, recipients, actor)
	}
	return res, nil
}

// Generate returns a random KeyLength-character base-36 key.
func Generate() (string, error) {
	base := big.NewInt(int64(len(keyAlphabet)))
	b := make([]byte, KeyLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		b[i] = keyAlphabet[n.Int64()]
	}
	return string(b), nil
}
