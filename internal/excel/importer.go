package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/quizbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Column names expected in the header row. category is optional.
const (
	ColumnCategory      = "category"
	ColumnDifficulty    = "difficulty"
	ColumnQuestion      = "question"
	ColumnOption1       = "option1"
	ColumnOption2       = "option2"
	ColumnOption3       = "option3"
	ColumnOption4       = "option4"
	ColumnCorrectOption = "correct_option"
	ColumnRole          = "role"
)

var requiredColumns = []string{
	ColumnDifficulty, ColumnQuestion,
	ColumnOption1, ColumnOption2, ColumnOption3, ColumnOption4,
	ColumnCorrectOption, ColumnRole,
}

// Format of an import file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath  string   // Path to the Excel or CSV file
	SheetName string   // Sheet to read; the first sheet when empty
	Roles     []string // Accepted roles; any role when empty
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// QuestionWriter is the part of the store the importer needs
type QuestionWriter interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	QuestionExists(ctx context.Context, text, role string) (bool, error)
}

// FormatFromName picks the format by file extension
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(name))
}

// ImportQuestions loads questions from the file at config.FilePath
func ImportQuestions(ctx context.Context, w QuestionWriter, config ImportConfig) (*ImportResult, error) {
	format, err := FormatFromName(config.FilePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()

	return Import(ctx, w, file, format, config)
}

// Import loads questions from r. Rows that fail validation are reported in
// the result and do not stop the import.
func Import(ctx context.Context, w QuestionWriter, r io.Reader, format Format, config ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX:
		rows, err = readExcel(r, config.SheetName)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("import file is empty")
	}

	columns, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		result.TotalProcessed++

		q, err := parseRow(row, columns, config.Roles)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		exists, err := w.QuestionExists(ctx, q.Text, q.Role)
		if err != nil {
			return result, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		if err := w.CreateQuestion(ctx, &q); err != nil {
			return result, fmt.Errorf("row %d: %w", rowNum, err)
		}
		result.Created++
	}
	return result, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int, roles []string) (models.Question, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	q := models.Question{
		Category: cell(ColumnCategory),
		Text:     cell(ColumnQuestion),
		Option1:  cell(ColumnOption1),
		Option2:  cell(ColumnOption2),
		Option3:  cell(ColumnOption3),
		Option4:  cell(ColumnOption4),
		Role:     strings.ToLower(cell(ColumnRole)),
	}

	if q.Text == "" {
		return q, fmt.Errorf("question cannot be empty")
	}
	for i, o := range q.Options() {
		if o == "" {
			return q, fmt.Errorf("option%d cannot be empty", i+1)
		}
	}
	if q.Role == "" {
		return q, fmt.Errorf("role cannot be empty")
	}
	if len(roles) > 0 && !contains(roles, q.Role) {
		return q, fmt.Errorf("unknown role %q", q.Role)
	}

	var err error
	if q.Difficulty, err = parseIntInRange(cell(ColumnDifficulty), 1, 100); err != nil {
		return q, fmt.Errorf("invalid difficulty: %w", err)
	}
	if q.CorrectOption, err = parseIntInRange(cell(ColumnCorrectOption), 1, 4); err != nil {
		return q, fmt.Errorf("invalid correct_option: %w", err)
	}
	return q, nil
}

// parseIntInRange parses s and rejects values outside [min, max]
func parseIntInRange(s string, min, max int) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%d is out of range %d-%d", val, min, max)
	}
	return val, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
