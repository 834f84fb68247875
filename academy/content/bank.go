// Package content loads quizzes authored as JSON files and serves them by slug.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	radix "github.com/armon/go-radix"
	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
)

// Bank is an in-memory index of the quizzes found under a content directory.
// Lookups are safe while a reload is in progress.
type Bank struct {
	dir        string
	ignoreFile string
	debounce   time.Duration
	logger     zerolog.Logger

	mu   sync.RWMutex
	tree *radix.Tree // slug -> quiz.Quiz
}

// BankOption customizes a Bank.
type BankOption func(*Bank)

// WithIgnoreFile sets the name of the gitignore-style file read from the
// content directory root.
func WithIgnoreFile(name string) BankOption { return func(b *Bank) { b.ignoreFile = name } }

func WithLogger(l zerolog.Logger) BankOption { return func(b *Bank) { b.logger = l } }

// WithDebounce sets how long Watch waits for changes to settle before reloading.
func WithDebounce(d time.Duration) BankOption {
	return func(b *Bank) {
		if d > 0 {
			b.debounce = d
		}
	}
}

// NewBank creates an empty bank over dir. Call Reload to populate it.
func NewBank(dir string, opts ...BankOption) *Bank {
	b := &Bank{
		dir:        dir,
		ignoreFile: academy.DefaultContentIgnore,
		debounce:   250 * time.Millisecond,
		logger:     zerolog.Nop(),
		tree:       radix.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dir returns the content directory.
func (b *Bank) Dir() string { return b.dir }

// ReloadError lists the files a reload skipped. The bank still serves every
// file that loaded.
type ReloadError struct {
	Problems []error
}

func (e *ReloadError) Error() string { return errors.Join(e.Problems...).Error() }
func (e *ReloadError) Unwrap() []error { return e.Problems }

// Reload rescans the content directory and swaps in a fresh index. Files
// that fail validation are skipped and reported through a *ReloadError.
// A missing directory yields an empty bank.
func (b *Bank) Reload() error {
	tree, problems, err := b.scan()
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.tree = tree
	b.mu.Unlock()

	b.logger.Info().
		Str("dir", b.dir).
		Int("quizzes", tree.Len()).
		Int("rejected", len(problems)).
		Msg("Content bank loaded")

	if len(problems) > 0 {
		return &ReloadError{Problems: problems}
	}
	return nil
}

func (b *Bank) scan() (*radix.Tree, []error, error) {
	tree := radix.New()

	info, err := os.Stat(b.dir)
	if errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn().Str("dir", b.dir).Msg("Content directory does not exist")
		return tree, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, &errs.ValidationError{Field: "content.dir", Message: fmt.Sprintf("%s is not a directory", b.dir)}
	}

	matcher, err := b.loadIgnore()
	if err != nil {
		return nil, nil, err
	}

	var problems []error
	origin := make(map[string]string)

	walkErr := filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		rel, relErr := filepath.Rel(b.dir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if matcher != nil && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(rel), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", rel, err))
			return nil
		}

		q, err := ParseQuiz(data, slugFromPath(rel))
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", rel, err))
			return nil
		}
		if prev, dup := origin[q.Slug]; dup {
			problems = append(problems, fmt.Errorf("%s: %w", rel,
				&errs.ValidationError{Field: "slug", Message: fmt.Sprintf("%q already defined by %s", q.Slug, prev)}))
			return nil
		}

		origin[q.Slug] = rel
		tree.Insert(q.Slug, q)
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("failed to scan content directory: %w", walkErr)
	}

	return tree, problems, nil
}

func (b *Bank) loadIgnore() (*ignore.GitIgnore, error) {
	if b.ignoreFile == "" {
		return nil, nil
	}
	path := filepath.Join(b.dir, b.ignoreFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matcher, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.ignoreFile, err)
	}
	return matcher, nil
}

func slugFromPath(rel string) string {
	return strings.ToLower(strings.TrimSuffix(rel, filepath.Ext(rel)))
}

// Get returns the quiz with the given slug.
func (b *Bank) Get(slug string) (quiz.Quiz, error) {
	b.mu.RLock()
	v, ok := b.tree.Get(slug)
	b.mu.RUnlock()
	if !ok {
		return quiz.Quiz{}, &errs.NotFoundError{Resource: "quiz", ID: slug}
	}
	return v.(quiz.Quiz), nil
}

// List returns the quizzes whose slug starts with prefix, ordered by slug.
func (b *Bank) List(prefix string) []quiz.Quiz {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []quiz.Quiz
	b.tree.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		out = append(out, v.(quiz.Quiz))
		return false
	})
	return out
}

// Len returns the number of indexed quizzes.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.Len()
}

// Public returns a copy of q safe to send to clients: correct answers,
// explanations and feedback are removed.
func Public(q quiz.Quiz) quiz.Quiz {
	out := q
	out.Questions = make([]quiz.Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = quiz.Question{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: append([]string(nil), question.Options...),
		}
	}
	return out
}
