package goja

import (
	"context"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_CancelledRunLeavesNoInterrupt(t *testing.T) {
	m := &Module{vm: goja.New()}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		// The cancelled run may or may not observe the interrupt.
		_, _ = m.run(cancelled, func() (goja.Value, error) { return m.vm.RunString("1") })

		v, err := m.run(context.Background(), func() (goja.Value, error) {
			return m.vm.RunString("var n = 0; for (var j = 0; j < 1000; j++) { n += j; } n")
		})
		require.NoError(t, err, "round %d", i)
		assert.Equal(t, int64(499500), v.ToInteger())
	}
}
