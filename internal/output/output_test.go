package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusLines(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Successf("wrote %s", "config.yaml")
	w.Warning("backup skipped")
	w.Errorf("failed: %d", 2)
	w.Status("", "indented")
	w.Statusf(">", "n=%d", 1)

	assert.Equal(t,
		"✓ wrote config.yaml\n! backup skipped\n✗ failed: 2\n  indented\n> n=1\n",
		buf.String())
}

func TestWriter_KeyValue(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).KeyValue("addr", ":3000")

	assert.Equal(t, "  addr:      :3000\n", buf.String())
}

func TestWriter_Code(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Code("a: 1\nb: 2\n")
	w.Newline()

	assert.Equal(t, "\n  a: 1\n  b: 2\n\n\n", buf.String())
}
