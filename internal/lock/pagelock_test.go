package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/tx"
)

// waitBlocked asserts that done does not fire within a short window.
func waitBlocked(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
		t.Fatal("operation completed but should have blocked")
	case <-time.After(50 * time.Millisecond):
	}
}

// waitDone asserts that done fires promptly.
func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not complete")
	}
}

func TestPageLock_SharedAdmitsSharers(t *testing.T) {
	l := newPageLock()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.acquireShared(tx.NewTransactionID())
		}()
	}
	wg.Wait()

	l.mu.Lock()
	require.Equal(t, 4, l.readers)
	require.Nil(t, l.writer)
	l.mu.Unlock()
}

func TestPageLock_ExclusiveExcludesAll(t *testing.T) {
	l := newPageLock()
	writer := tx.NewTransactionID()
	l.acquireExclusive(writer)

	readerDone := make(chan struct{})
	go func() {
		l.acquireShared(tx.NewTransactionID())
		close(readerDone)
	}()
	waitBlocked(t, readerDone)

	l.releaseExclusive()
	waitDone(t, readerDone)
}

func TestPageLock_ExclusiveWaitsForReaders(t *testing.T) {
	l := newPageLock()
	l.acquireShared(tx.NewTransactionID())

	writerDone := make(chan struct{})
	go func() {
		l.acquireExclusive(tx.NewTransactionID())
		close(writerDone)
	}()
	waitBlocked(t, writerDone)

	l.releaseShared()
	waitDone(t, writerDone)
}

func TestPageLock_UpgradeWaitsForSoleReader(t *testing.T) {
	l := newPageLock()
	upgrader := tx.NewTransactionID()
	l.acquireShared(upgrader)
	l.acquireShared(tx.NewTransactionID())

	upDone := make(chan struct{})
	go func() {
		l.upgrade(upgrader)
		close(upDone)
	}()
	waitBlocked(t, upDone)

	// Once the other reader leaves, the upgrade lands atomically.
	l.releaseShared()
	waitDone(t, upDone)

	l.mu.Lock()
	require.Equal(t, 0, l.readers)
	require.Same(t, upgrader, l.writer)
	require.Nil(t, l.upgrading)
	l.mu.Unlock()
}

func TestPageLock_UpgradeImmediateWhenSole(t *testing.T) {
	l := newPageLock()
	upgrader := tx.NewTransactionID()
	l.acquireShared(upgrader)

	l.upgrade(upgrader)

	l.mu.Lock()
	require.Equal(t, 0, l.readers)
	require.Same(t, upgrader, l.writer)
	l.mu.Unlock()

	// And releasing the exclusive reopens the gate for readers.
	l.releaseExclusive()
	readerDone := make(chan struct{})
	go func() {
		l.acquireShared(tx.NewTransactionID())
		close(readerDone)
	}()
	waitDone(t, readerDone)
}
