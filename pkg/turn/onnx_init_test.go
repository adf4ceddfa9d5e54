package turn

import (
	"sync"
	"testing"
)

func TestEnsureOrtEnv_Idempotent(t *testing.T) {
	first := ensureOrtEnv()

	// Repeated and concurrent calls must all observe the first result.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ensureOrtEnv(); err != first {
				t.Errorf("ensureOrtEnv() = %v, want %v", err, first)
			}
		}()
	}
	wg.Wait()
}
