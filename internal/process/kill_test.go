package process

import "testing"

// Killing real processes is exercised by the browser integration tests.
func TestKillTree_NoProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pid  int
	}{
		{name: "unused pid", pid: 999999999},
		{name: "zero is ignored", pid: 0},
		{name: "negative is ignored", pid: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			KillTree(tt.pid)
		})
	}
}
