package reactivecell

import (
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// TestLogifaceLoggerIntegration exercises this package's Logger interface
// backed by a real logiface.Logger wired into the engine's logging seam.
func TestLogifaceLoggerIntegration(t *testing.T) {
	var captured []*logifaceEvent

	writer := logiface.WriterFunc[*logifaceEvent](func(event *logifaceEvent) error {
		captured = append(captured, event)
		return nil
	})

	adapted := NewLogifaceEventLogger(LevelDebug, writer)

	e, err := New(WithLogger(adapted))
	require.NoError(t, err)
	t.Cleanup(e.Shutdown)

	c := e.NewCell(0)
	c.Set(1)

	require.NotEmpty(t, captured, "notify must flow through to the logiface writer")

	var found bool
	for _, ev := range captured {
		if ev.fields["category"] == "cell" {
			found = true
			break
		}
	}
	require.True(t, found, "the logiface event must carry the LogEntry's category field")
}

// TestLogifaceLoggerRespectsLevel confirms IsEnabled suppresses entries below
// the configured logiface level, so a disabled Engine log category never
// reaches the logiface Logger at all.
func TestLogifaceLoggerRespectsLevel(t *testing.T) {
	var captured int
	writer := logiface.WriterFunc[*logifaceEvent](func(event *logifaceEvent) error {
		captured++
		return nil
	})

	adapted := NewLogifaceEventLogger(LevelError, writer)
	require.False(t, adapted.IsEnabled(LevelDebug))
	require.True(t, adapted.IsEnabled(LevelError))

	adapted.Log(LogEntry{Level: LevelDebug, Category: "cell", Message: "should be dropped"})
	require.Zero(t, captured, "Log must not emit anything for a disabled level")

	adapted.Log(LogEntry{Level: LevelError, Category: "cell", Message: "should be written", Err: errors.New("boom")})
	require.Equal(t, 1, captured)
}
