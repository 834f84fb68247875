package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
)

//go:embed schema/quiz.schema.json
var quizSchemaJSON []byte

var loadQuizSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(quizSchemaJSON))
})

// ParseQuiz validates data against the quiz schema and the rules the schema
// cannot express, then decodes it. fallbackSlug is used when the document
// names no slug; the slug doubles as the id when no id is given.
func ParseQuiz(data []byte, fallbackSlug string) (quiz.Quiz, error) {
	schema, err := loadQuizSchema()
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("failed to compile quiz schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return quiz.Quiz{}, &errs.ValidationError{Field: "document", Message: err.Error()}
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return quiz.Quiz{}, &errs.ValidationError{Field: "schema", Message: strings.Join(problems, "; ")}
	}

	var q quiz.Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return quiz.Quiz{}, &errs.ValidationError{Field: "document", Message: err.Error()}
	}

	if q.Slug == "" {
		q.Slug = fallbackSlug
	}
	if q.Slug == "" {
		return quiz.Quiz{}, &errs.ValidationError{Field: "slug", Message: "quiz has no slug"}
	}
	if q.ID == "" {
		q.ID = q.Slug
	}

	if err := checkQuestions(q.Questions); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

func checkQuestions(questions []quiz.Question) error {
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if _, dup := seen[q.ID]; dup {
			return &errs.ValidationError{Field: fmt.Sprintf("questions[%d].id", i), Message: fmt.Sprintf("duplicate question id %q", q.ID)}
		}
		seen[q.ID] = struct{}{}

		options := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if _, dup := options[o]; dup {
				return &errs.ValidationError{Field: fmt.Sprintf("questions[%d].options", i), Message: fmt.Sprintf("duplicate option %q", o)}
			}
			options[o] = struct{}{}
		}
		if _, ok := options[q.CorrectAnswer]; !ok {
			return &errs.ValidationError{Field: fmt.Sprintf("questions[%d].correct_answer", i), Message: "must be one of the options"}
		}
	}
	return nil
}
