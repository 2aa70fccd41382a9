package testlog

import (
	"testing"

	"github.com/quartzlab/stationctl/internal/logging"
)

// Start configures test logging and marks the test boundaries so station
// and client output stays attributable when tests interleave.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	logging.Infof("test=%s", t.Name())
	t.Cleanup(func() {
		if t.Failed() {
			logging.Errorf("test=%s failed", t.Name())
		}
	})
}
