// Package store keeps the task backlog and the result history as two JSON
// files. Every mutation is persisted before the call returns, so a crash
// never loses an earlier transition or result.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"time"

	"github.com/harrison/ralph/internal/filelock"
	"github.com/harrison/ralph/internal/models"
)

// Default file names used when the caller does not configure paths.
const (
	DefaultTaskFile    = "prd.json"
	DefaultResultsFile = "ralph_results.json"
)

// Store owns the in-memory task and result collections and their files.
type Store struct {
	taskFile    string
	resultsFile string

	mu      sync.RWMutex
	tasks   []models.Task
	results []models.TaskResult

	now func() time.Time
}

// New creates a Store for the given task and result files. Nothing is read
// until Load or LoadResults is called.
func New(taskFile, resultsFile string) *Store {
	if taskFile == "" {
		taskFile = DefaultTaskFile
	}
	if resultsFile == "" {
		resultsFile = DefaultResultsFile
	}
	return &Store{
		taskFile:    taskFile,
		resultsFile: resultsFile,
		now:         time.Now,
	}
}

// TaskFile returns the path of the task collection.
func (s *Store) TaskFile() string { return s.taskFile }

// ResultsFile returns the path of the result history.
func (s *Store) ResultsFile() string { return s.resultsFile }

// taskRecord mirrors models.Task with pointers so missing required fields
// can be told apart from zero values.
type taskRecord struct {
	ID          *string            `json:"id"`
	Title       *string            `json:"title"`
	Status      *models.TaskStatus `json:"status"`
	Description string             `json:"description"`
	Acceptance  string             `json:"acceptance"`
	Priority    int                `json:"priority"`
	Tags        []string           `json:"tags"`
	CreatedAt   *time.Time         `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at"`
}

// Load reads the task file and replaces the in-memory collection.
func (s *Store) Load() ([]models.Task, error) {
	data, err := filelock.ReadLocked(s.taskFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: s.taskFile}
		}
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Path: s.taskFile, Index: -1, Reason: "expected a JSON array of tasks", Err: err}
	}

	loadedAt := s.now()
	tasks := make([]models.Task, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for i, item := range raw {
		var rec taskRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, &FormatError{Path: s.taskFile, Index: i, Err: err}
		}
		task, err := rec.toTask(loadedAt)
		if err != nil {
			return nil, &FormatError{Path: s.taskFile, Index: i, Reason: err.Error()}
		}
		if prev, dup := seen[task.ID]; dup {
			return nil, &FormatError{Path: s.taskFile, Index: i, Reason: fmt.Sprintf("duplicate id %q (first seen at record %d)", task.ID, prev)}
		}
		seen[task.ID] = i
		tasks = append(tasks, task)
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()

	return cloneTasks(tasks), nil
}

func (rec taskRecord) toTask(loadedAt time.Time) (models.Task, error) {
	if rec.ID == nil {
		return models.Task{}, errors.New("missing required field \"id\"")
	}
	if rec.Title == nil {
		return models.Task{}, errors.New("missing required field \"title\"")
	}
	task := models.Task{
		ID:          *rec.ID,
		Title:       *rec.Title,
		Status:      models.StatusTodo,
		Description: rec.Description,
		Acceptance:  rec.Acceptance,
		Priority:    rec.Priority,
		Tags:        rec.Tags,
		CreatedAt:   loadedAt,
		CompletedAt: rec.CompletedAt,
	}
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	if rec.Status != nil {
		task.Status = *rec.Status
	}
	if rec.CreatedAt != nil {
		task.CreatedAt = *rec.CreatedAt
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	return task, nil
}

// Save writes the full task collection atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveTasksLocked()
}

func (s *Store) saveTasksLocked() error {
	tasks := s.tasks
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := encodeJSON(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := filelock.LockAndWrite(s.taskFile, data); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	return nil
}

// LoadResults reads the result history. A missing file is an empty history.
func (s *Store) LoadResults() ([]models.TaskResult, error) {
	data, err := filelock.ReadLocked(s.resultsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			s.results = []models.TaskResult{}
			s.mu.Unlock()
			return []models.TaskResult{}, nil
		}
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var results []models.TaskResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, &FormatError{Path: s.resultsFile, Index: -1, Err: err}
	}
	if results == nil {
		results = []models.TaskResult{}
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()

	return append([]models.TaskResult(nil), results...), nil
}

// SaveResults writes the full result history atomically.
func (s *Store) SaveResults() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveResultsLocked()
}

func (s *Store) saveResultsLocked() error {
	results := s.results
	if results == nil {
		results = []models.TaskResult{}
	}
	data, err := encodeJSON(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := filelock.LockAndWrite(s.resultsFile, data); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}

// FindByID returns a copy of the task with the given id.
func (s *Store) FindByID(id string) (*models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		task := s.tasks[i].Clone()
		return &task, true
	}
	return nil, false
}

func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateStatus is the only way a task's status changes. Unknown ids are
// ignored. Moving into completed stamps CompletedAt; the file is saved.
func (s *Store) UpdateStatus(id string, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}

	task := &s.tasks[i]
	task.Status = status
	if status == models.StatusCompleted {
		ts := s.now()
		task.CompletedAt = &ts
	}
	return s.saveTasksLocked()
}

// AddResult appends a result and saves the history.
func (s *Store) AddResult(result models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)
	return s.saveResultsLocked()
}

// AddTask creates a TODO task with the next numeric id and saves the file.
func (s *Store) AddTask(title, description, acceptance string, priority int, tags []string) (models.Task, error) {
	task := models.Task{
		Title:       title,
		Status:      models.StatusTodo,
		Description: description,
		Acceptance:  acceptance,
		Priority:    priority,
		Tags:        append([]string{}, tags...),
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = nextID(s.tasks)
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	s.tasks = append(s.tasks, task)
	if err := s.saveTasksLocked(); err != nil {
		return models.Task{}, err
	}
	return task.Clone(), nil
}

// nextID returns max(numeric ids)+1 as a zero-padded three digit string.
// Ids that are not plain non-negative integers are ignored.
func nextID(tasks []models.Task) string {
	highest := 0
	for _, t := range tasks {
		if !isDigits(t.ID) {
			continue
		}
		n, err := strconv.Atoi(t.ID)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%03d", highest+1)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Statistics counts tasks by status.
func (s *Store) Statistics() models.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CountStatuses(s.tasks)
}

// Tasks returns a copy of the task collection in file order.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Results returns a copy of the result history.
func (s *Store) Results() []models.TaskResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TaskResult(nil), s.results...)
}

// FilterByStatus returns the tasks currently in status.
func (s *Store) FilterByStatus(status models.TaskStatus) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

// SetTasks replaces the in-memory collection without saving. It is used to
// start a fresh backlog when the task file does not exist yet.
func (s *Store) SetTasks(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = cloneTasks(tasks)
}

// RequeueStale moves tasks left in_progress by an interrupted run back to
// todo through UpdateStatus and returns their ids.
func (s *Store) RequeueStale() ([]string, error) {
	var stale []string
	for _, t := range s.FilterByStatus(models.StatusInProgress) {
		stale = append(stale, t.ID)
	}
	for _, id := range stale {
		if err := s.UpdateStatus(id, models.StatusTodo); err != nil {
			return nil, fmt.Errorf("failed to requeue task %s: %w", id, err)
		}
	}
	return stale, nil
}

// CreateExampleFile replaces the backlog with a two-task sample and saves it.
func (s *Store) CreateExampleFile() error {
	created := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = []models.Task{
		{
			ID:          "001",
			Title:       "Create calculator.py",
			Status:      models.StatusTodo,
			Description: "Implement add, subtract, multiply and divide functions",
			Acceptance:  "All functions can be called and return correct results",
			Priority:    10,
			Tags:        []string{"core", "math"},
			CreatedAt:   created,
		},
		{
			ID:          "002",
			Title:       "Write unit tests",
			Status:      models.StatusTodo,
			Description: "Write pytest tests for calculator.py",
			Acceptance:  "Test coverage > 90%",
			Priority:    9,
			Tags:        []string{"test"},
			CreatedAt:   created,
		},
	}
	return s.saveTasksLocked()
}

func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return nil
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
