// Package manifest reads batch retrieval manifests. A manifest lists one
// retrieval request per row, either as CSV with the columns "S3 URL",
// "Number of days" and an optional "Tier", or as a YAML list of
// {url, days, tier} entries. Rows without a tier use the default tier.
//
// A malformed file is rejected as a whole. A row with a bad value, such as
// an unknown tier, is returned with its error set so that only that row's
// job fails.
package manifest

import (
	"encoding/csv"
	stderr "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Format is the encoding of a manifest file
type Format int

const (
	FormatCSV Format = iota
	FormatYAML
)

// Header names accepted for each CSV column, compared case-insensitively
var (
	urlHeaders  = []string{"s3 url", "url", "location"}
	daysHeaders = []string{"number of days", "days", "retention_days"}
	tierHeaders = []string{"tier", "retrieval tier"}
)

// Row is one parsed manifest row. Number is the CSV line or the YAML entry
// number. Err is set when the row cannot be run; Request then carries
// whatever could be read.
type Row struct {
	Number  int
	Request types.RetrievalRequest
	Err     error
}

// Requests returns the requests of the rows that parsed cleanly
func Requests(rows []Row) []types.RetrievalRequest {
	reqs := make([]types.RetrievalRequest, 0, len(rows))
	for _, row := range rows {
		if row.Err == nil {
			reqs = append(reqs, row.Request)
		}
	}
	return reqs
}

// Entry is one YAML manifest row
type Entry struct {
	URL  string `yaml:"url"`
	Days *int   `yaml:"days"`
	Tier string `yaml:"tier,omitempty"`
}

// DetectFormat picks the format from the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return FormatCSV, errors.NewError(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("unsupported manifest extension %q (use .csv, .yaml or .yml)", filepath.Ext(path))).
		WithContext("path", path)
}

// Load reads the manifest at path
func Load(path string, defaultTier types.TierSpeed) ([]Row, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to open manifest", err).
			WithContext("path", path)
	}
	defer f.Close()

	if format == FormatYAML {
		return ParseYAML(f, defaultTier)
	}
	return ParseCSV(f, defaultTier)
}

// ParseCSV reads a CSV manifest. Blank rows are ignored. Locations are
// passed through for the orchestrator to validate, so a bad location aborts
// only its own job.
func ParseCSV(r io.Reader, defaultTier types.TierSpeed) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if stderr.Is(err, io.EOF) {
		return nil, headerError("manifest is empty")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to read manifest header", err)
	}

	urlCol, daysCol, tierCol := -1, -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch {
		case slices.Contains(urlHeaders, name):
			urlCol = i
		case slices.Contains(daysHeaders, name):
			daysCol = i
		case slices.Contains(tierHeaders, name):
			tierCol = i
		}
	}
	if urlCol < 0 || daysCol < 0 {
		return nil, headerError(`manifest header must name the "S3 URL" and "Number of days" columns`)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if stderr.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to read manifest", err)
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		row := Row{Number: line, Request: types.RetrievalRequest{Location: field(record, urlCol)}}

		days, derr := parseDays(field(record, daysCol))
		tier, terr := resolveTier(field(record, tierCol), defaultTier)
		row.Request.RetentionDays = days
		row.Request.Tier = tier
		if derr != nil {
			row.Err = atLine(derr, line)
		} else if terr != nil {
			row.Err = atLine(terr, line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseYAML reads a YAML manifest
func ParseYAML(r io.Reader, defaultTier types.TierSpeed) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to read manifest", err)
	}

	var entries []Entry
	if err := yaml.UnmarshalStrict(data, &entries); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to parse manifest", err)
	}

	rows := make([]Row, 0, len(entries))
	for i, entry := range entries {
		row := Row{Number: i + 1, Request: types.RetrievalRequest{Location: strings.TrimSpace(entry.URL)}}

		tier, terr := resolveTier(entry.Tier, defaultTier)
		row.Request.Tier = tier
		switch {
		case entry.Days == nil:
			row.Err = atEntry(errors.NewError(errors.ErrCodeInvalidRequest, "days is required"), i)
		case terr != nil:
			row.Request.RetentionDays = *entry.Days
			row.Err = atEntry(terr, i)
		default:
			row.Request.RetentionDays = *entry.Days
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseDays(value string) (int, *errors.RetrievalError) {
	if value == "" {
		return 0, errors.NewError(errors.ErrCodeInvalidRequest, "number of days is required")
	}
	days, err := strconv.Atoi(value)
	if err != nil {
		// Spreadsheet exports write whole numbers as "7.0"
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, errors.NewError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("number of days %q is not a whole number", value)).
				WithContext("days", value)
		}
		days = int(f)
	}
	return days, nil
}

// resolveTier keeps the INVALID_TIER error of ParseTierSpeed so callers see
// which value was rejected.
func resolveTier(value string, defaultTier types.TierSpeed) (types.TierSpeed, *errors.RetrievalError) {
	if value == "" {
		if !defaultTier.Valid() {
			return 0, errors.NewError(errors.ErrCodeInvalidTier, "no tier given and no default tier set")
		}
		return defaultTier, nil
	}
	tier, err := types.ParseTierSpeed(value)
	if err != nil {
		var re *errors.RetrievalError
		if stderr.As(err, &re) {
			return 0, re
		}
		return 0, errors.Wrap(errors.ErrCodeInvalidTier, fmt.Sprintf("unknown restore tier %q", value), err)
	}
	return tier, nil
}

func field(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func headerError(msg string) error {
	return errors.NewError(errors.ErrCodeInvalidRequest, "manifest line 1: "+msg).
		WithContext("line", "1")
}

func atLine(err *errors.RetrievalError, line int) error {
	err.Message = fmt.Sprintf("manifest line %d: %s", line, err.Message)
	return err.WithContext("line", strconv.Itoa(line))
}

func atEntry(err *errors.RetrievalError, index int) error {
	err.Message = fmt.Sprintf("manifest entry %d: %s", index+1, err.Message)
	return err.WithContext("entry", strconv.Itoa(index+1))
}
