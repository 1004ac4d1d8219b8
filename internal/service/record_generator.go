package service

import (
	"context"
	"fmt"
	"time"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
)

// RecordGenerator materialises one attendance record per enrolled student for a date.
type RecordGenerator struct {
	roster RosterReader
	store  AttendanceStore
}

// NewRecordGenerator constructs the generator.
func NewRecordGenerator(roster RosterReader, store AttendanceStore) *RecordGenerator {
	return &RecordGenerator{roster: roster, store: store}
}

// Generate returns the class roster for date in roster order. Students with a
// stored record get it verbatim; the rest get an unsaved ABSENT placeholder
// carrying the requested date. It never writes.
func (g *RecordGenerator) Generate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	date = models.NormalizeDate(date)
	students, err := g.roster.StudentsInClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load roster for class %s: %w", classID, err)
	}
	if len(students) == 0 {
		return []models.AttendanceRecord{}, nil
	}
	stored, err := g.store.FindByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, fmt.Errorf("load attendance for class %s on %s: %w", classID, date.Format(models.DateLayout), err)
	}
	byStudent := make(map[string]models.AttendanceRecord, len(stored))
	for _, rec := range stored {
		byStudent[rec.StudentID] = rec
	}

	records := make([]models.AttendanceRecord, 0, len(students))
	for _, student := range students {
		rec, ok := byStudent[student.StudentID]
		if !ok {
			rec = Placeholder(student.StudentID, date)
		}
		rec.StudentName = student.Name
		rec.ClassName = student.ClassName
		records = append(records, rec)
	}
	return records, nil
}

// Placeholder builds the unsaved record shown for a student with no stored row.
func Placeholder(studentID string, date time.Time) models.AttendanceRecord {
	return models.AttendanceRecord{
		StudentID: studentID,
		Date:      models.NormalizeDate(date),
		Status:    models.AttendanceStatusAbsent,
	}
}
