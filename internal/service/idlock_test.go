package service

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const n = 50
	var counter, max int
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := km.Lock("same")
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}

	wg.Wait()

	if max != 1 {
		t.Fatalf("at most one holder per key expected, saw %d", max)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	releaseA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		releaseB := km.Lock("b")
		releaseB()
		close(done)
	}()

	<-done // must not deadlock while "a" is held
	releaseA()
}

func TestKeyedMutexCleansUpEntries(t *testing.T) {
	km := newKeyedMutex()

	release := km.Lock("ephemeral")
	release()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("released keys should be dropped, map holds %d entries", len(km.locks))
	}
}
