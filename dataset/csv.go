// Package dataset reads and writes the tabular layout shared by the CLI and
// the experiment runner: one row per document, numeric feature columns, an
// optional expert label, and a machine label.
//
//	text,x1,x2,x3,x4,x5,y,y_pred
//	"...",12,340,3,0,1,1,1
//	"...",8,120,0,2,0,,0
//
// An empty label cell marks a row without an expert label. When an expert
// column is present it decides which rows are selected instead.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Column names used when Options leaves them empty.
const (
	DefaultTextColumn       = "text"
	DefaultLabelColumn      = "y"
	DefaultPredictionColumn = "y_pred"
	DefaultExpertColumn     = "expert"
)

// DefaultFeatureColumns are the five numeric features of a parsed corpus.
var DefaultFeatureColumns = []string{"x1", "x2", "x3", "x4", "x5"}

// Options names the columns to read.
type Options struct {
	FeatureColumns   []string
	LabelColumn      string
	PredictionColumn string
	ExpertColumn     string
}

func (o Options) withDefaults() Options {
	if len(o.FeatureColumns) == 0 {
		o.FeatureColumns = DefaultFeatureColumns
	}
	if o.LabelColumn == "" {
		o.LabelColumn = DefaultLabelColumn
	}
	if o.PredictionColumn == "" {
		o.PredictionColumn = DefaultPredictionColumn
	}
	if o.ExpertColumn == "" {
		o.ExpertColumn = DefaultExpertColumn
	}
	return o
}

// Table is a dataset ready for FitPPI. Y holds NaN on rows without an
// expert label.
type Table struct {
	FeatureNames []string
	Text         []string // nil when the file has no text column
	X            *mat.Dense
	Y            []float64
	YPred        []float64
	Selected     []bool
}

// NumLabelled returns the number of selected rows.
func (t *Table) NumLabelled() int {
	n := 0
	for _, s := range t.Selected {
		if s {
			n++
		}
	}
	return n
}

// ReadFile opens path and calls ReadCSV.
func ReadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// ReadCSV parses a CSV stream with a header row.
func ReadCSV(r io.Reader, opts Options) (*Table, error) {
	const op = "dataset.ReadCSV"
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewInvalidInputError(op, "header", "file is empty", nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	col := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, errors.NewInvalidInputError(op, "header", "missing column", name)
		}
		return i, nil
	}

	features := make([]int, len(opts.FeatureColumns))
	for j, name := range opts.FeatureColumns {
		if features[j], err = col(name); err != nil {
			return nil, err
		}
	}
	labelIdx, err := col(opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	predIdx, err := col(opts.PredictionColumn)
	if err != nil {
		return nil, err
	}
	expertIdx, hasExpert := index[opts.ExpertColumn]
	textIdx, hasText := index[DefaultTextColumn]

	t := &Table{FeatureNames: append([]string(nil), opts.FeatureColumns...)}
	var values []float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d", line)
		}

		for j, i := range features {
			v, err := parseFloat(rec[i])
			if err != nil || math.IsNaN(v) {
				return nil, errors.NewInvalidInputError(op, opts.FeatureColumns[j], "not a number on line "+strconv.Itoa(line), rec[i])
			}
			values = append(values, v)
		}

		pred, err := parseFloat(rec[predIdx])
		if err != nil {
			return nil, errors.NewInvalidInputError(op, opts.PredictionColumn, "not a number on line "+strconv.Itoa(line), rec[predIdx])
		}
		t.YPred = append(t.YPred, pred)

		y := math.NaN()
		if s := strings.TrimSpace(rec[labelIdx]); s != "" {
			if y, err = parseFloat(s); err != nil {
				return nil, errors.NewInvalidInputError(op, opts.LabelColumn, "not a number on line "+strconv.Itoa(line), s)
			}
		}
		t.Y = append(t.Y, y)

		selected := !math.IsNaN(y)
		if hasExpert {
			if selected, err = parseBool(rec[expertIdx]); err != nil {
				return nil, errors.NewInvalidInputError(op, opts.ExpertColumn, "expected 1/0/true/false on line "+strconv.Itoa(line), rec[expertIdx])
			}
			if selected && math.IsNaN(y) {
				return nil, errors.NewInvalidInputError(op, opts.LabelColumn, "expert row has no label on line "+strconv.Itoa(line), nil)
			}
		}
		t.Selected = append(t.Selected, selected)

		if hasText {
			t.Text = append(t.Text, rec[textIdx])
		}
	}

	if len(t.YPred) == 0 {
		return nil, errors.NewInvalidInputError(op, "rows", "file has a header but no data", nil)
	}
	t.X = mat.NewDense(len(t.YPred), len(features), values)
	return t, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	}
	return false, errors.Newf("invalid boolean %q", s)
}

// WriteCSV writes t with a header row. Labels of unselected rows are written
// as empty cells, and an expert column is always included.
func WriteCSV(w io.Writer, t *Table) error {
	n, d := t.X.Dims()
	if len(t.Y) != n || len(t.YPred) != n || len(t.Selected) != n {
		return errors.NewDimensionError("dataset.WriteCSV", n, len(t.Y), 0)
	}
	names := t.FeatureNames
	if len(names) != d {
		names = make([]string, d)
		for j := range names {
			names[j] = "x" + strconv.Itoa(j+1)
		}
	}

	cw := csv.NewWriter(w)
	header := append(append([]string(nil), names...), DefaultLabelColumn, DefaultPredictionColumn, DefaultExpertColumn)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	rec := make([]string, d+3)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			rec[j] = strconv.FormatFloat(t.X.At(i, j), 'g', -1, 64)
		}
		rec[d] = ""
		rec[d+2] = "0"
		if t.Selected[i] {
			rec[d] = strconv.FormatFloat(t.Y[i], 'g', -1, 64)
			rec[d+2] = "1"
		}
		rec[d+1] = strconv.FormatFloat(t.YPred[i], 'g', -1, 64)
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
