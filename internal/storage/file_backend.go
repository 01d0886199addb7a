package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// File names inside the data directory.
const (
	TasksFile     = "tasks.yaml"
	RulesFile     = "rules.yaml"
	TemplatesFile = "templates.yaml"
)

// fileFormatVersion is written into every state file.
const fileFormatVersion = 1

type tasksDocument struct {
	Version  int             `yaml:"version"`
	Projects []*task.Project `yaml:"projects"`
	Personal []*task.Task    `yaml:"personal"`
}

type rulesDocument struct {
	Version int                `yaml:"version"`
	Rules   []*automation.Rule `yaml:"rules"`
}

type templatesDocument struct {
	Version   int                    `yaml:"version"`
	Templates []*recurrence.Template `yaml:"templates"`
}

// FileBackend stores each set as a YAML document in a data directory.
// Writes are atomic; a missing file reads as an empty set.
type FileBackend struct {
	dir     string
	mu      sync.Mutex
	onWrite func(path string, data []byte)
}

// NewFileBackend creates a file backend rooted at dir, creating it if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// OnWrite registers fn to see every document just before it is written.
// File watchers use it to tell their own writes from external edits.
func (b *FileBackend) OnWrite(fn func(path string, data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onWrite = fn
}

// Dir returns the data directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) SaveTasks(_ context.Context, projects []*task.Project, personal []*task.Task) error {
	return b.write(TasksFile, tasksDocument{Version: fileFormatVersion, Projects: projects, Personal: personal})
}

func (b *FileBackend) LoadTasks(context.Context) ([]*task.Project, []*task.Task, error) {
	var doc tasksDocument
	if err := b.read(TasksFile, &doc); err != nil {
		return nil, nil, err
	}
	return doc.Projects, doc.Personal, nil
}

func (b *FileBackend) SaveRules(_ context.Context, rules []*automation.Rule) error {
	return b.write(RulesFile, rulesDocument{Version: fileFormatVersion, Rules: rules})
}

func (b *FileBackend) LoadRules(context.Context) ([]*automation.Rule, error) {
	var doc rulesDocument
	if err := b.read(RulesFile, &doc); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

func (b *FileBackend) SaveTemplates(_ context.Context, templates []*recurrence.Template) error {
	return b.write(TemplatesFile, templatesDocument{Version: fileFormatVersion, Templates: templates})
}

func (b *FileBackend) LoadTemplates(context.Context) ([]*recurrence.Template, error) {
	var doc templatesDocument
	if err := b.read(TemplatesFile, &doc); err != nil {
		return nil, err
	}
	return doc.Templates, nil
}

// Close is a no-op; every write is already durable.
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) write(name string, doc any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	path := filepath.Join(b.dir, name)
	if b.onWrite != nil {
		b.onWrite(path, buf.Bytes())
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (b *FileBackend) read(name string, doc any) error {
	b.mu.Lock()
	data, err := os.ReadFile(filepath.Join(b.dir, name))
	b.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
