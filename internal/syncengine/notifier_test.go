package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_FanOutInOrder(t *testing.T) {
	var n Notifier[int]
	var got []string

	n.Subscribe(func(v int) { got = append(got, "a") })
	unsubB := n.Subscribe(func(v int) { got = append(got, "b") })
	n.Subscribe(func(v int) { got = append(got, "c") })

	n.Notify(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	unsubB()
	unsubB()
	assert.Equal(t, 2, n.Len())

	got = nil
	n.Notify(2)
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestNotifier_SnapshotDuringNotify(t *testing.T) {
	var n Notifier[int]
	calls := 0

	var unsubSecond func()
	n.Subscribe(func(int) {
		calls++
		unsubSecond()
		n.Subscribe(func(int) { calls += 100 })
	})
	unsubSecond = n.Subscribe(func(int) { calls++ })

	// Both original subscribers run; the one added mid-notify does not.
	n.Notify(0)
	assert.Equal(t, 2, calls)
}

func TestNotifier_NoSubscribers(t *testing.T) {
	var n Notifier[string]
	assert.NotPanics(t, func() { n.Notify("x") })
}
