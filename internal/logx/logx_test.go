package logx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug().Msg("hidden")
	log.Info().Str("stage", "compact").Int("count", 3).Msg("done")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "done")
	require.Contains(t, out, "stage=compact")
	require.Contains(t, out, "count=3")
	require.NotContains(t, out, "\x1b[", "非终端不输出颜色")

	buf.Reset()
	log = New(&buf, true)
	log.Debug().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestIsTerminal_NonFile(t *testing.T) {
	require.False(t, IsTerminal(&bytes.Buffer{}))
}
