// Package storage writes harmonized series to per-year CSV files laid
// out for downstream model training.
package storage

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/timeseries"
)

// Quantity names a physical quantity and its unit for file and column
// naming.
type Quantity struct {
	// Key is the machine name used in file names and database rows.
	Key string
	// Label is the human-readable column name.
	Label string
	// Unit is the measurement unit appended to the column name.
	Unit string
}

var (
	ElectricityDemand = Quantity{Key: "electricity_demand", Label: "Electricity demand", Unit: "MW"}
	Temperature       = Quantity{Key: "temperature", Label: "Temperature", Unit: "degC"}
)

// ColumnName returns the CSV header of the value column.
func (q Quantity) ColumnName() string {
	return fmt.Sprintf("%s [%s]", q.Label, q.Unit)
}

const timeColumnLayout = "2006-01-02 15:04:05-07:00"

// Writer persists harmonized years as CSV files under a base directory.
type Writer struct {
	dir    string
	logger *logrus.Logger
}

// NewWriter creates a writer rooted at dir, creating it when absent.
func NewWriter(dir string, logger *logrus.Logger) (*Writer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// FileName returns the relative file name for one (quantity, entity,
// year) combination.
func FileName(quantity Quantity, entityCode string, year int) string {
	return fmt.Sprintf("%s_%s_%d.csv", quantity.Key, entityCode, year)
}

// WriteYear writes one harmonized year to its CSV file, replacing any
// previous content. Missing values become empty cells.
func (w *Writer) WriteYear(quantity Quantity, entityCode string, year int, rows []timeseries.FrameRow) (string, error) {
	path := filepath.Join(w.dir, FileName(quantity, entityCode, year))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"Time (UTC)",
		quantity.ColumnName(),
		"Local hour of the day",
		"Local day of the week",
		"Local month of the year",
		"Local year",
	}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		value := ""
		if !math.IsNaN(row.Value) {
			value = strconv.FormatFloat(row.Value, 'f', -1, 64)
		}
		record := []string{
			row.TimeUTC.Format(timeColumnLayout),
			value,
			strconv.Itoa(row.LocalHour),
			strconv.Itoa(row.LocalDayOfWeek),
			strconv.Itoa(row.LocalMonth),
			strconv.Itoa(row.LocalYear),
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", path, err)
	}

	w.logger.WithFields(logrus.Fields{
		"file": path,
		"rows": len(rows),
	}).Info("Wrote harmonized year")
	return path, nil
}
