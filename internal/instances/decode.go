package instances

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported file formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FormatOf maps a file extension to a format name.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// CSVOptions carries the instance-level values a node table cannot hold.
type CSVOptions struct {
	Name       string
	Capacity   float64
	CostFactor float64
	Vehicles   int
}

// Decode reads a definition in the given format. Unknown fields are
// rejected for yaml and json.
func Decode(r io.Reader, format string, csvOpts CSVOptions) (Definition, error) {
	var d Definition
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			if errors.Is(err, io.EOF) {
				return Definition{}, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
			}
			return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
	case FormatCSV:
		return decodeCSV(r, csvOpts)
	default:
		return Definition{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return d, nil
}

// LoadFile reads and decodes path, picking the format from its extension.
// A definition without a name is named after the file.
func LoadFile(path string, csvOpts CSVOptions) (Definition, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Definition{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read instance: %w", err)
	}
	d, err := Decode(bytes.NewReader(b), format, csvOpts)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}

// decodeCSV reads a node table with a header row. Columns id and demand are
// required, x and y are optional; '#' starts a comment line.
func decodeCSV(r io.Reader, o CSVOptions) (Definition, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if len(rows) < 2 {
		return Definition{}, fmt.Errorf("%w: csv needs a header and at least one row", ErrInvalidDefinition)
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, okID := col["id"]
	demandCol, okDemand := col["demand"]
	if !okID || !okDemand {
		return Definition{}, fmt.Errorf("%w: csv header needs id and demand columns", ErrInvalidDefinition)
	}
	xCol, hasX := col["x"]
	yCol, hasY := col["y"]

	d := Definition{Name: o.Name, Capacity: o.Capacity, CostFactor: o.CostFactor, Vehicles: o.Vehicles}
	for line, row := range rows[1:] {
		var n Node
		if n.ID, err = strconv.Atoi(strings.TrimSpace(row[idCol])); err != nil {
			return Definition{}, fmt.Errorf("%w: row %d: id: %v", ErrInvalidDefinition, line+2, err)
		}
		if n.Demand, err = parseFloat(row[demandCol]); err != nil {
			return Definition{}, fmt.Errorf("%w: row %d: demand: %v", ErrInvalidDefinition, line+2, err)
		}
		if hasX && hasY {
			x, err := parseFloat(row[xCol])
			if err != nil {
				return Definition{}, fmt.Errorf("%w: row %d: x: %v", ErrInvalidDefinition, line+2, err)
			}
			y, err := parseFloat(row[yCol])
			if err != nil {
				return Definition{}, fmt.Errorf("%w: row %d: y: %v", ErrInvalidDefinition, line+2, err)
			}
			n.X, n.Y = &x, &y
		}
		d.Nodes = append(d.Nodes, n)
	}
	return d, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
