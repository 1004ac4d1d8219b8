package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Sunflower attendance",
		Headers: []string{"Student ID", "Student", "Present"},
		Rows: [][]string{
			{"s-1", "An", "3"},
			{"s-2", "Binh, Jr.", "1"},
		},
		Footer: [][]string{{"", "Class total", "4"}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Student ID", "Student", "Present"}, records[0])
	assert.Equal(t, "Binh, Jr.", records[2][1])
	assert.Equal(t, "Class total", records[3][1])
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"s-3"})
	_, err := NewCSVExporter().Render(data)
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.now = func() time.Time { return time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) }

	out, err := exporter.Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{})
	require.Error(t, err)
}
