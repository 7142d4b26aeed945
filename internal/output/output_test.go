package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusPrintsIconAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("🔍", "Rebuilding index...")

	assert.Contains(t, buf.String(), "🔍")
	assert.Contains(t, buf.String(), "Rebuilding index...")
}

func TestStatusWithoutIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("", "continued")

	assert.Equal(t, "   continued\n", buf.String())
}

func TestSuccessfAndWarningfAndErrorf(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("indexed %d documents", 3)
	w.Warningf("slow path")
	w.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "✅ indexed 3 documents")
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "❌ failed: boom")
}

func TestResultAndDetail(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Result(1, "docs/pooling.md:0:abc", 0.987)
	w.Detail("matched: pooling, connection")

	out := buf.String()
	assert.Contains(t, out, " 1. docs/pooling.md:0:abc (score 0.987)")
	assert.Contains(t, out, "    matched: pooling, connection")
}

func TestKVAligns(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.KV("Documents", 2)

	assert.Equal(t, "Documents: 2\n", buf.String())
}

func TestBlockIndentsEachLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Block("line one\nline two")

	assert.Contains(t, buf.String(), "  line one\n  line two\n")
}
