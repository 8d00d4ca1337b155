// Package ingest turns delimited files into raw records for the pipeline.
// It is deliberately forgiving: headers are normalized and mapped onto the
// entity's boundary columns, values stay untouched strings, and nothing is
// validated here — bad values belong to the rule cascade, not the reader.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/organregistry/etl/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when a file is neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// ReadFile parses an uploaded file into raw records for one entity type.
// Row numbers are 1-based over data rows in original file order.
func ReadFile(entity domain.EntityType, fileName string, data io.Reader) ([]domain.RawRecord, error) {
	if !entity.Valid() {
		return nil, fmt.Errorf("read %s: unknown entity type %q", fileName, entity)
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("file %s is empty", fileName)
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		rows, err = parseCSV(payload)
	case ".xlsx":
		rows, err = parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}

	return buildRecords(entity, fileName, rows)
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func buildRecords(entity domain.EntityType, fileName string, rows [][]string) ([]domain.RawRecord, error) {
	headerIdx := -1
	for idx, row := range rows {
		if !blankRow(row) {
			headerIdx = idx
			break
		}
	}
	if headerIdx < 0 {
		return nil, errors.New("no header row detected")
	}

	columns := mapHeaders(entity, rows[headerIdx])

	records := []domain.RawRecord{}
	for _, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		fields := make(map[string]string, len(columns))
		for colIdx, column := range columns {
			if column == "" {
				continue
			}
			if colIdx < len(row) {
				fields[column] = strings.TrimSpace(row[colIdx])
			} else {
				fields[column] = ""
			}
		}
		records = append(records, domain.RawRecord{
			SourceFileName: fileName,
			Fields:         fields,
		})
	}

	return records, nil
}

// mapHeaders resolves each file header to a boundary column, or "" when the
// column is unknown and should be dropped.
func mapHeaders(entity domain.EntityType, headerRow []string) []string {
	known := map[string]string{}
	for _, column := range domain.Columns(entity) {
		known[column] = column
	}
	for synonym, column := range headerSynonyms(entity) {
		known[synonym] = column
	}

	columns := make([]string, len(headerRow))
	for idx, raw := range headerRow {
		columns[idx] = known[normalizeHeader(raw)]
	}
	return columns
}

// headerSynonyms covers the spellings upstream extracts have shipped with.
func headerSynonyms(entity domain.EntityType) map[string]string {
	common := map[string]string{
		"dob":           domain.ColBirthDate,
		"date_of_birth": domain.ColBirthDate,
		"height":        domain.ColHeightCM,
		"weight":        domain.ColWeightKG,
		"abo":           domain.ColBloodType,
	}
	switch entity {
	case domain.EntityDonor:
		common["id"] = domain.ColDonorID
		common["organ"] = domain.ColOrganType
	case domain.EntityRecipient:
		common["id"] = domain.ColRecipientID
		common["organ"] = domain.ColOrganNeeded
		common["pra"] = domain.ColPRAPct
	case domain.EntityCenter:
		common["name"] = domain.ColFacilityName
		common["code"] = domain.ColFacilityCode
	}
	return common
}

func normalizeHeader(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, "%", "_pct")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
