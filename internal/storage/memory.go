package storage

import (
	"slices"
	"sync"

	"studentrecords/internal/model"
)

// Memory keeps the saved collection in memory. Data is lost on restart.
type Memory struct {
	mu       sync.Mutex
	students []model.Student
	saves    int
}

func NewMemory(initial ...model.Student) *Memory {
	return &Memory{students: slices.Clone(initial)}
}

func (m *Memory) Location() string { return "memory" }

func (m *Memory) Close() error { return nil }

func (m *Memory) Load() ([]model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.students == nil {
		return []model.Student{}, nil
	}
	return slices.Clone(m.students), nil
}

func (m *Memory) Save(students []model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = slices.Clone(students)
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
