package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const introQuiz = `{
  "title": "Intro",
  "questions": [
    {"id": "q1", "prompt": "Which came first?", "options": ["Bitcoin", "Ethereum"], "correct_answer": "Bitcoin"}
  ]
}`

func writeQuiz(t *testing.T, dir, name string) {
	t.Helper()
	writeRaw(t, dir, name, introQuiz)
}

func writeRaw(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}
