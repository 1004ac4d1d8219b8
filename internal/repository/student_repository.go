package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
)

// StudentRepository reads class rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// StudentsInClass returns the students enrolled in a class ordered by name.
func (r *StudentRepository) StudentsInClass(ctx context.Context, classID string) ([]models.RosterStudent, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS name, s.class_id, c.name AS class_name
FROM students s
JOIN classes c ON c.id = s.class_id
WHERE s.class_id = $1
ORDER BY s.full_name, s.id`
	var students []models.RosterStudent
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list students in class: %w", err)
	}
	return students, nil
}
