// Package spreadsheet reads batch query rows from uploaded .xlsx or .csv files.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/xuri/excelize/v2"
)

// Required column headers
const (
	ColumnDocumentType   = "tipo_identificacion"
	ColumnDocumentNumber = "numero_identificacion"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrEmptySheet        = errors.New("spreadsheet is empty")
	ErrMissingColumns    = errors.New("spreadsheet is missing required columns")
	ErrNoValidRows       = errors.New("spreadsheet has no rows with both document type and number")
)

// Supported reports whether the file extension can be read
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}

// ReadFile reads rows from a file on disk
func ReadFile(path string) ([]models.BatchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses the upload named filename. Rows lacking either required
// value are dropped. Numeric cells are returned as float64.
func Read(r io.Reader, filename string) ([]models.BatchRow, error) {
	var rows []models.BatchRow
	var err error

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q (use .xlsx or .csv)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}
	return rows, nil
}

// columns finds the required headers, case and space insensitive
func columns(header []string) (typeCol, numberCol int, err error) {
	typeCol, numberCol = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case ColumnDocumentType:
			typeCol = i
		case ColumnDocumentNumber:
			numberCol = i
		}
	}

	var missing []string
	if typeCol < 0 {
		missing = append(missing, ColumnDocumentType)
	}
	if numberCol < 0 {
		missing = append(missing, ColumnDocumentNumber)
	}
	if len(missing) > 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return typeCol, numberCol, nil
}

func readXLSX(r io.Reader) ([]models.BatchRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	sheet := sheets[0]

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(grid) == 0 {
		return nil, ErrEmptySheet
	}

	typeCol, numberCol, err := columns(grid[0])
	if err != nil {
		return nil, err
	}

	var rows []models.BatchRow
	for i := 1; i < len(grid); i++ {
		line := i + 1
		docType, err := cellValue(f, sheet, typeCol, line)
		if err != nil {
			return nil, err
		}
		number, err := cellValue(f, sheet, numberCol, line)
		if err != nil {
			return nil, err
		}
		if blank(docType) || blank(number) {
			continue
		}
		rows = append(rows, models.BatchRow{
			Line:           line,
			DocumentType:   strings.TrimSpace(fmt.Sprint(docType)),
			DocumentNumber: number,
		})
	}
	return rows, nil
}

// cellValue returns float64 for numeric cells and the formatted string otherwise
func cellValue(f *excelize.File, sheet string, col, line int) (interface{}, error) {
	cell, err := excelize.CoordinatesToCellName(col+1, line)
	if err != nil {
		return nil, err
	}

	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("cell %s: %w", cell, err)
	}
	if typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset {
		raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", cell, err)
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return n, nil
		}
	}

	value, err := f.GetCellValue(sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("cell %s: %w", cell, err)
	}
	return value, nil
}

func readCSV(r io.Reader) ([]models.BatchRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySheet
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	typeCol, numberCol, err := columns(header)
	if err != nil {
		return nil, err
	}

	var rows []models.BatchRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		docType, number := field(record, typeCol), field(record, numberCol)
		if docType == "" || number == "" {
			continue
		}
		rows = append(rows, models.BatchRow{Line: line, DocumentType: docType, DocumentNumber: number})
	}
	return rows, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
