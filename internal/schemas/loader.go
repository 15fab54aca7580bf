// Package schemas embeds the JSON Schemas for the learner record and for the
// structured output of each primary agent.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.schema.json
var schemaFS embed.FS

const (
	LearnerRecord      = "learner-record"
	CurriculumDecision = "curriculum-decision"
	Lesson             = "lesson"
	TaskAssignment     = "task-assignment"
	ReviewVerdict      = "review-verdict"
)

var names = []string{LearnerRecord, CurriculumDecision, Lesson, TaskAssignment, ReviewVerdict}

var (
	compileOnce sync.Once
	compiler    *jsonschema.Compiler
	compileErr  error

	cacheMu sync.Mutex
	cache   = map[string]*jsonschema.Schema{}
)

func getCompiler() (*jsonschema.Compiler, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range names {
			data, err := schemaFS.ReadFile(schemaPath(name))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		compiler = c
	})
	return compiler, compileErr
}

func schemaPath(name string) string {
	return fmt.Sprintf("%s.schema.json", name)
}

func schemaURL(name string) string {
	return fmt.Sprintf("mem://schemas/%s.schema.json", name)
}

// Compile returns the compiled schema for name. Compiled schemas are cached.
func Compile(name string) (*jsonschema.Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if s, ok := cache[name]; ok {
		return s, nil
	}

	c, err := getCompiler()
	if err != nil {
		return nil, err
	}
	s, err := c.Compile(schemaURL(name))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	cache[name] = s
	return s, nil
}

// Validate checks a JSON document against the named schema.
func Validate(name string, data []byte) error {
	schema, err := Compile(name)
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s document: %w", name, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%s invalid: %w", name, err)
	}
	return nil
}

// ValidateValue marshals v and validates the result.
func ValidateValue(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", name, err)
	}
	return Validate(name, data)
}

// List returns the raw embedded schemas keyed by name.
func List() (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	for _, n := range names {
		b, err := schemaFS.ReadFile(schemaPath(n))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", n, err)
		}
		out[n] = b
	}
	return out, nil
}
