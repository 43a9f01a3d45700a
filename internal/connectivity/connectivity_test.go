package connectivity

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidcolor/colorbook/internal/event"
)

func TestMonitorTransitionsOnly(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var published []bool
	bus.Subscribe(event.ConnectivityChanged, func(e event.Event) {
		published = append(published, e.Data.(event.ConnectivityChangedData).Online)
	})

	m := New(bus, false)
	var seen []bool
	unsub := m.OnTransition(func(online bool) { seen = append(seen, online) })

	assert.False(t, m.Online())
	assert.False(t, m.Set(false), "same status is not a transition")
	assert.True(t, m.Set(true))
	assert.True(t, m.Online())
	assert.False(t, m.Set(true))
	assert.True(t, m.Set(false))

	assert.Equal(t, []bool{true, false}, seen)
	assert.Equal(t, []bool{true, false}, published)

	unsub()
	m.Set(true)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestMonitorWithoutBus(t *testing.T) {
	m := New(nil, true)
	assert.True(t, m.Online())
	assert.True(t, m.Set(false))
	assert.False(t, m.Online())
}

func TestMonitorConcurrentSetKeepsOrder(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	m := New(bus, false)

	var mu sync.Mutex
	var seen, published []bool
	m.OnTransition(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})
	bus.Subscribe(event.ConnectivityChanged, func(e event.Event) {
		mu.Lock()
		published = append(published, e.Data.(event.ConnectivityChangedData).Online)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(online bool) {
			defer wg.Done()
			m.Set(online)
		}(i%2 == 0)
	}
	wg.Wait()

	for _, got := range [][]bool{seen, published} {
		require.NotEmpty(t, got)
		assert.True(t, got[0], "first transition from offline is to online")
		for i := 1; i < len(got); i++ {
			require.NotEqual(t, got[i-1], got[i], "transition %d repeats the previous status", i)
		}
		assert.Equal(t, m.Online(), got[len(got)-1], "last observed status matches the monitor")
	}
}

func TestWriteAndReadStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "network-status")

	require.NoError(t, WriteStatus(path, true))
	online, err := ReadStatus(path)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, WriteStatus(path, false))
	online, err = ReadStatus(path)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, os.WriteFile(path, []byte("maybe"), 0644))
	_, err = ReadStatus(path)
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = ReadStatus(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileSignalDrivesMonitor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network-status")
	require.NoError(t, WriteStatus(path, true))

	m := New(nil, false)
	changes := make(chan bool, 10)
	m.OnTransition(func(online bool) { changes <- online })

	sig, err := NewFileSignal(path, m)
	require.NoError(t, err)
	sig.Start()
	defer sig.Stop()

	// Start applies the existing file
	assert.True(t, m.Online())
	assert.Equal(t, true, <-changes)

	require.NoError(t, WriteStatus(path, false))
	select {
	case online := <-changes:
		assert.False(t, online)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for offline transition")
	}

	require.NoError(t, WriteStatus(path, true))
	select {
	case online := <-changes:
		assert.True(t, online)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for online transition")
	}
}

func TestFileSignalMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "network-status")

	m := New(nil, true)
	sig, err := NewFileSignal(path, m)
	require.NoError(t, err)
	sig.Start()
	sig.Start()

	assert.True(t, m.Online(), "a missing file leaves the status unchanged")
	require.NoError(t, sig.Stop())
}
