package storage

import (
	"fmt"

	"gorm.io/gorm"

	"studentrecords/internal/database"
	"studentrecords/internal/model"
)

// studentRow is the SQL shape of a record. Position preserves collection order.
type studentRow struct {
	Position   int     `gorm:"primaryKey;autoIncrement:false"`
	RollNumber string  `gorm:"uniqueIndex;not null"`
	Name       string  `gorm:"not null"`
	Age        int     `gorm:"not null"`
	Marks      float64 `gorm:"not null"`
}

func (studentRow) TableName() string { return "students" }

// GormStore mirrors the collection into a SQL table through gorm.
type GormStore struct {
	db       *gorm.DB
	location string
}

// NewGormStore migrates the students table and returns a store over db.
func NewGormStore(db *gorm.DB, location string) (*GormStore, error) {
	if err := db.AutoMigrate(&studentRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, location: location}, nil
}

func (s *GormStore) Location() string { return s.location }

func (s *GormStore) Close() error {
	return database.Close(s.db)
}

// Load reads the table in position order. Rows that break the field rules
// are reported as ErrCorrupt.
func (s *GormStore) Load() ([]model.Student, error) {
	var rows []studentRow
	if err := s.db.Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}
	students := make([]model.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, model.Student{
			RollNumber: r.RollNumber,
			Name:       r.Name,
			Age:        r.Age,
			Marks:      model.NormalizeMarks(r.Marks),
		})
	}
	if err := checkRecords(students, func(i int) string { return fmt.Sprintf("position %d", rows[i].Position) }); err != nil {
		return nil, err
	}
	return students, nil
}

// Save replaces the table contents inside one transaction.
func (s *GormStore) Save(students []model.Student) error {
	rows := make([]studentRow, 0, len(students))
	for i, st := range students {
		rows = append(rows, studentRow{
			Position:   i + 1,
			RollNumber: st.RollNumber,
			Name:       st.Name,
			Age:        st.Age,
			Marks:      st.Marks,
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&studentRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}
