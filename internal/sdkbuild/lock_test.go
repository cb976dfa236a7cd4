package sdkbuild

import (
	"strings"
	"testing"
)

func TestBuildLockIsExclusive(t *testing.T) {
	base := t.TempDir()
	ran := false
	err := withBuildLock(base, func() error {
		ran = true
		nested := withBuildLock(base, func() error {
			t.Error("nested build ran while the lock was held")
			return nil
		})
		if nested == nil || !strings.Contains(nested.Error(), "another build is running") {
			t.Errorf("nested lock error = %v", nested)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("withBuildLock = %v (ran %v)", err, ran)
	}

	// released once fn returns
	if err := withBuildLock(base, func() error { return nil }); err != nil {
		t.Errorf("lock not released: %v", err)
	}
}
