package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Todo is one entry of the demo site's list.
type Todo struct {
	ID        string
	Title     string
	Done      bool
	CreatedAt time.Time
}

// Store is an in-memory todo store.
type Store struct {
	mu     sync.RWMutex
	todos  map[string]*Todo
	nextID int
}

// NewStore creates a new store with sample data.
func NewStore() *Store {
	s := &Store{
		todos:  make(map[string]*Todo),
		nextID: 1,
	}
	s.Add("Buy groceries")
	s.Add("Review PR #123")
	s.Add("Write documentation")
	return s
}

// Add creates a new todo and returns its ID.
func (s *Store) Add(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("todo-%d", s.nextID)
	s.nextID++
	s.todos[id] = &Todo{
		ID:        id,
		Title:     title,
		CreatedAt: time.Now(),
	}
	return id
}

// Get returns a copy of the todo with id, or false.
func (s *Store) Get(id string) (Todo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	if !ok {
		return Todo{}, false
	}
	return *t, true
}

// Toggle flips the done state of a todo.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok {
		return false
	}
	t.Done = !t.Done
	return true
}

// List returns copies of all todos, oldest first.
func (s *Store) List() []Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Todo, 0, len(s.todos))
	for _, t := range s.todos {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
