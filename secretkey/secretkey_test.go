package secretkey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iplogin/notify"
	"iplogin/options"
)

type call struct {
	key        string
	recipients []string
	actor      string
}

type recordingNotifier struct {
	calls []call
}

func (r *recordingNotifier) Notify(newKey string, recipients []string, actor string) []notify.Outcome {
	r.calls = append(r.calls, call{newKey, recipients, actor})
	out := make([]notify.Outcome, 0, len(recipients))
	for _, to := range recipients {
		out = append(out, notify.Outcome{Recipient: to})
	}
	return out
}

func fixedClock(s string) func() time.Time {
	ts, err := time.ParseInLocation(time.DateTime, s, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, Locked, StateFor("2024-05-01", "2024-05-01"))
	assert.Equal(t, Editable, StateFor("2024-04-30", "2024-05-01"))
	assert.Equal(t, Editable, StateFor("", "2024-05-01"))
}

func TestSubmitOnEditableDay(t *testing.T) {
	store := options.NewMemory()
	require.NoError(t, store.Set(options.KeyLastChangedDate, "2024-04-30"))
	n := &recordingNotifier{}
	m := NewManager(store, n).WithClock(fixedClock("2024-05-01 09:00:00"))

	res, err := m.SubmitKeyChange("newkey", []string{"a@x.test", "b@x.test"}, "me@x.test")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Nil(t, res.Reason)
	assert.Len(t, res.Outcomes, 2)

	rec, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, Record{Key: "newkey", LastChangedDate: "2024-05-01"}, rec)

	require.Len(t, n.calls, 1)
	assert.Equal(t, call{"newkey", []string{"a@x.test", "b@x.test"}, "me@x.test"}, n.calls[0])

	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, Locked, state)
}

func TestSubmitOnLockedDayIsNoop(t *testing.T) {
	store := options.NewMemory()
	require.NoError(t, store.Set(options.SecretKey, "old"))
	require.NoError(t, store.Set(options.KeyLastChangedDate, "2024-05-01"))
	n := &recordingNotifier{}
	m := NewManager(store, n).WithClock(fixedClock("2024-05-01 23:59:59"))

	res, err := m.SubmitKeyChange("other", []string{"a@x.test"}, "me@x.test")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.ErrorIs(t, res.Reason, ErrAlreadyChangedToday)
	assert.Empty(t, n.calls)

	rec, _ := m.Current()
	assert.Equal(t, Record{Key: "old", LastChangedDate: "2024-05-01"}, rec)
}

func TestSecondSubmitSameDayDoesNotResend(t *testing.T) {
	store := options.NewMemory()
	n := &recordingNotifier{}
	m := NewManager(store, n).WithClock(fixedClock("2024-05-01 08:00:00"))

	first, err := m.SubmitKeyChange("k1", []string{"a@x.test"}, "")
	require.NoError(t, err)
	second, err := m.SubmitKeyChange("k2", []string{"a@x.test"}, "")
	require.NoError(t, err)

	assert.True(t, first.Accepted)
	assert.False(t, second.Accepted)
	assert.Len(t, n.calls, 1)
	rec, _ := m.Current()
	assert.Equal(t, "k1", rec.Key)
}

func TestSameKeyResubmissionStillConsumesDay(t *testing.T) {
	store := options.NewMemory()
	require.NoError(t, store.Set(options.SecretKey, "same"))
	require.NoError(t, store.Set(options.KeyLastChangedDate, "2024-04-01"))
	n := &recordingNotifier{}
	m := NewManager(store, n).WithClock(fixedClock("2024-05-01 08:00:00"))

	res, err := m.SubmitKeyChange("same", []string{"a@x.test"}, "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Len(t, n.calls, 1)
}

func TestLockResetsNextDay(t *testing.T) {
	store := options.NewMemory()
	n := &recordingNotifier{}
	now := fixedClock("2024-05-01 23:59:59")
	m := NewManager(store, n).WithClock(func() time.Time { return now() })

	_, err := m.SubmitKeyChange("k1", nil, "")
	require.NoError(t, err)

	now = fixedClock("2024-05-02 00:00:01")
	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, Editable, state)

	res, err := m.SubmitKeyChange("k2", nil, "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestEmptyKeyRejectedWithoutConsumingDay(t *testing.T) {
	store := options.NewMemory()
	n := &recordingNotifier{}
	m := NewManager(store, n).WithClock(fixedClock("2024-05-01 08:00:00"))

	res, err := m.SubmitKeyChange("", []string{"a@x.test"}, "")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Reason, ErrEmptyKey)
	assert.Empty(t, n.calls)

	state, _ := m.State()
	assert.Equal(t, Editable, state)
}

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		k, err := Generate()
		require.NoError(t, err)
		require.Len(t, k, KeyLength)
		for _, c := range k {
			require.True(t, strings.ContainsRune(keyAlphabet, c), "unexpected rune %q", c)
		}
		seen[k] = true
	}
	assert.Len(t, seen, 50)
}
