package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const parsedCorpus = `text,x1,x2,x3,x4,x5,y,y_pred
"Is aspirin effective?",21,340,3,2,1,1,1
"Does, with a comma",18,120,0,0,0,,0
"Third",9,88,1,5,2,0,1
`

func TestReadCSVDefaults(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(parsedCorpus), Options{})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	r, c := tbl.X.Dims()
	if r != 3 || c != 5 {
		t.Fatalf("X dims = (%d, %d), want (3, 5)", r, c)
	}
	if tbl.X.At(0, 1) != 340 || tbl.X.At(2, 4) != 2 {
		t.Errorf("unexpected feature values %v", mat.Formatted(tbl.X))
	}
	if !math.IsNaN(tbl.Y[1]) {
		t.Errorf("empty label should read as NaN, got %v", tbl.Y[1])
	}
	wantSel := []bool{true, false, true}
	for i, s := range wantSel {
		if tbl.Selected[i] != s {
			t.Errorf("Selected[%d] = %v, want %v", i, tbl.Selected[i], s)
		}
	}
	if tbl.NumLabelled() != 2 {
		t.Errorf("NumLabelled = %d, want 2", tbl.NumLabelled())
	}
	if tbl.Text[1] != "Does, with a comma" {
		t.Errorf("Text[1] = %q", tbl.Text[1])
	}
	if tbl.YPred[2] != 1 {
		t.Errorf("YPred[2] = %v, want 1", tbl.YPred[2])
	}
}

func TestReadCSVExpertColumnAndCustomFeatures(t *testing.T) {
	in := `a,b,label,pred,is_expert
1,2,1,1,true
3,4,0,1,0
5,6,,0,false
`
	tbl, err := ReadCSV(strings.NewReader(in), Options{
		FeatureColumns:   []string{"b", "a"},
		LabelColumn:      "label",
		PredictionColumn: "pred",
		ExpertColumn:     "is_expert",
	})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tbl.X.At(0, 0) != 2 || tbl.X.At(0, 1) != 1 {
		t.Errorf("feature order not respected: %v", mat.Formatted(tbl.X))
	}
	if !tbl.Selected[0] || tbl.Selected[1] || tbl.Selected[2] {
		t.Errorf("expert column should decide selection, got %v", tbl.Selected)
	}
	if tbl.Text != nil {
		t.Error("Text should be nil without a text column")
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"header only", "x1,x2,x3,x4,x5,y,y_pred\n"},
		{"missing column", "x1,x2,y,y_pred\n1,2,1,1\n"},
		{"bad feature", "x1,x2,x3,x4,x5,y,y_pred\n1,a,3,4,5,1,1\n"},
		{"nan feature", "x1,x2,x3,x4,x5,y,y_pred\n1,NaN,3,4,5,1,1\n"},
		{"bad prediction", "x1,x2,x3,x4,x5,y,y_pred\n1,2,3,4,5,1,\n"},
		{"bad label", "x1,x2,x3,x4,x5,y,y_pred\n1,2,3,4,5,yes,1\n"},
		{"expert without label", "x1,x2,x3,x4,x5,y,y_pred,expert\n1,2,3,4,5,,1,1\n"},
		{"bad expert", "x1,x2,x3,x4,x5,y,y_pred,expert\n1,2,3,4,5,1,1,maybe\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in), Options{})
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want invalid input", err)
			}
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := &Table{
		FeatureNames: []string{"x1", "x1_sq"},
		X:            mat.NewDense(3, 2, []float64{0.5, 0.25, -1.5, 2.25, 2, 4}),
		Y:            []float64{1, math.NaN(), 0},
		YPred:        []float64{1, 1, 0},
		Selected:     []bool{true, false, true},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, src); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "x1,x1_sq,y,y_pred,expert\n") {
		t.Errorf("unexpected header in %q", buf.String())
	}

	got, err := ReadCSV(&buf, Options{FeatureColumns: src.FeatureNames})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !mat.Equal(got.X, src.X) {
		t.Errorf("X = %v, want %v", mat.Formatted(got.X), mat.Formatted(src.X))
	}
	for i := range src.Selected {
		if got.Selected[i] != src.Selected[i] || got.YPred[i] != src.YPred[i] {
			t.Errorf("row %d differs", i)
		}
		if src.Selected[i] && got.Y[i] != src.Y[i] {
			t.Errorf("Y[%d] = %v, want %v", i, got.Y[i], src.Y[i])
		}
	}
}

func TestWriteCSVDimensionMismatch(t *testing.T) {
	tbl := &Table{
		X:        mat.NewDense(2, 1, []float64{1, 2}),
		Y:        []float64{1},
		YPred:    []float64{1, 0},
		Selected: []bool{true, false},
	}
	if err := WriteCSV(&bytes.Buffer{}, tbl); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want invalid input", err)
	}
}
