package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/vocastar/internal/curriculum"
	"github.com/example/vocastar/pkg/models"
	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	SheetName     string // Name of the sheet to import; first sheet when empty
	StartRow      int    // The row to start importing from (1-based index)
	WeekColumn    string // Column with the week ("3" or "3주차")
	DayColumn     string // Column with the day ("2" or "Day 2")
	EnglishColumn string // Column with the English phrase
	MeaningColumn string // Column with the translation
	ExampleColumn string // Column with the example sentence
	IDColumn      string // Optional column with a stable idiom id
	TitleColumn   string // Week title (week tables only)
	LabelColumn   string // Week label (week tables only)
}

// DefaultIdiomConfig returns the column layout of idiom tables
func DefaultIdiomConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:      path,
		StartRow:      1,
		WeekColumn:    "A",
		DayColumn:     "B",
		EnglishColumn: "C",
		MeaningColumn: "D",
		ExampleColumn: "E",
		IDColumn:      "F",
	}
}

// DefaultWeekConfig returns the column layout of week metadata tables
func DefaultWeekConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:    path,
		StartRow:    1,
		WeekColumn:  "A",
		TitleColumn: "B",
		LabelColumn: "C",
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// ImportIdioms reads idiom rows from an Excel or CSV file. Rows without a week number
// (headers, blank lines) are skipped; malformed rows are reported in the result.
func ImportIdioms(config ImportConfig) ([]models.IdiomEntry, *ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	idioms := make([]models.IdiomEntry, 0, len(rows))
	perDay := make(map[models.Position]int)

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		result.TotalProcessed++

		week := extractNumber(cell(row, config.WeekColumn))
		if week == 0 {
			result.Skipped++
			continue
		}

		idiom, err := processIdiomRow(row, config, week)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		pos := models.Position{Week: idiom.Week, Day: idiom.Day}
		perDay[pos]++
		if idiom.ID == "" {
			idiom.ID = fmt.Sprintf("w%dd%d-%d", idiom.Week, idiom.Day, perDay[pos])
		}
		idioms = append(idioms, idiom)
		result.Imported++
	}

	return idioms, result, nil
}

// ImportWeeks reads week metadata rows from an Excel or CSV file
func ImportWeeks(config ImportConfig) ([]models.WeekInfo, *ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	weeks := make([]models.WeekInfo, 0, len(rows))
	for i, row := range rows {
		if i+1 < config.StartRow {
			continue
		}
		result.TotalProcessed++

		week := extractNumber(cell(row, config.WeekColumn))
		if week == 0 {
			result.Skipped++
			continue
		}
		info := models.WeekInfo{
			Week:  week,
			Title: cell(row, config.TitleColumn),
			Label: cell(row, config.LabelColumn),
		}
		if info.Title == "" {
			info.Title = fmt.Sprintf("Week %d", week)
		}
		if info.Label == "" {
			info.Label = fmt.Sprintf("%d주차", week)
		}
		weeks = append(weeks, info)
		result.Imported++
	}
	return weeks, result, nil
}

// LoadCurriculum imports the idiom table and the optional week table and builds the store
func LoadCurriculum(idiomPath, weeksPath string) (*curriculum.Store, error) {
	idioms, result, err := ImportIdioms(DefaultIdiomConfig(idiomPath))
	if err != nil {
		return nil, fmt.Errorf("failed to import idioms: %w", err)
	}
	for _, msg := range result.Errors {
		log.Printf("curriculum import: %s", msg)
	}
	log.Printf("curriculum import: %d idioms from %s (%d skipped, %d errors)",
		result.Imported, idiomPath, result.Skipped, len(result.Errors))

	var weeks []models.WeekInfo
	if weeksPath != "" {
		weeks, _, err = ImportWeeks(DefaultWeekConfig(weeksPath))
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("week metadata %s not found, using generated titles", weeksPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to import weeks: %w", err)
		}
	}

	return curriculum.New(idioms, weeks)
}

func processIdiomRow(row []string, config ImportConfig, week int) (models.IdiomEntry, error) {
	day := extractNumber(cell(row, config.DayColumn))
	if day < 1 || day > models.DaysPerWeek {
		return models.IdiomEntry{}, fmt.Errorf("day must be between 1 and %d", models.DaysPerWeek)
	}

	idiom := models.IdiomEntry{
		Week:    week,
		Day:     day,
		English: cell(row, config.EnglishColumn),
		Meaning: cell(row, config.MeaningColumn),
		Example: cell(row, config.ExampleColumn),
	}
	if config.IDColumn != "" {
		idiom.ID = cell(row, config.IDColumn)
	}

	if idiom.English == "" {
		return models.IdiomEntry{}, fmt.Errorf("english phrase cannot be empty")
	}
	if idiom.Meaning == "" {
		return models.IdiomEntry{}, fmt.Errorf("meaning cannot be empty")
	}
	return idiom, nil
}

// readRows loads all rows of the configured file, as CSV or as an Excel sheet by extension
func readRows(config ImportConfig) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return readCSV(config.FilePath)
	}
	return readExcel(config.FilePath, config.SheetName)
}

func readExcel(path, sheet string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cell returns the trimmed value of column in row, or "" when the row is short
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx := columnToIndex(column)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(row[idx]), "\"")
}

var digits = regexp.MustCompile(`\d+`)

// extractNumber returns the first integer in s ("Day 1" -> 1, "12주차" -> 12), or 0
func extractNumber(s string) int {
	match := digits.FindString(s)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
