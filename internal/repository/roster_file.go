package repository

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
)

type rosterFileEntry struct {
	StudentID string `mapstructure:"student_id"`
	Name      string `mapstructure:"name"`
	ClassID   string `mapstructure:"class_id"`
	ClassName string `mapstructure:"class_name"`
}

// LoadRosterFile enrolls the students listed under the "students" key of a
// JSON or YAML file into roster and returns how many were enrolled. The file
// is read in full before anything is enrolled.
func LoadRosterFile(path string, roster *MemoryRoster) (int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("read roster file %s: %w", path, err)
	}
	var entries []rosterFileEntry
	if err := v.UnmarshalKey("students", &entries); err != nil {
		return 0, fmt.Errorf("decode roster file %s: %w", path, err)
	}

	students := make([]models.RosterStudent, 0, len(entries))
	for i, entry := range entries {
		student := models.RosterStudent{
			StudentID: strings.TrimSpace(entry.StudentID),
			Name:      strings.TrimSpace(entry.Name),
			ClassID:   strings.TrimSpace(entry.ClassID),
			ClassName: strings.TrimSpace(entry.ClassName),
		}
		if student.StudentID == "" || student.ClassID == "" {
			return 0, fmt.Errorf("roster file %s: entry %d needs student_id and class_id", path, i)
		}
		students = append(students, student)
	}
	for _, student := range students {
		roster.Enroll(student)
	}
	return len(students), nil
}
