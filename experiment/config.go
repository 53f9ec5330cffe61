package experiment

import (
	"bytes"
	"io"
	"os"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config describes a batch of seeded simulation trials.
type Config struct {
	// Seed of the first trial; trial i uses Seed+i.
	Seed     uint64  `json:"seed" yaml:"seed"`
	Trials   int     `json:"trials" yaml:"trials" validate:"min=2"`
	Samples  int     `json:"samples" yaml:"samples" validate:"min=10"`
	Labelled int     `json:"labelled" yaml:"labelled" validate:"min=2,ltefield=Samples"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy" validate:"gte=0,lte=1"`
	Alpha    float64 `json:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`

	// Concurrency bounds the number of trials in flight; 0 means one per CPU.
	Concurrency     int  `json:"concurrency" yaml:"concurrency" validate:"gte=0,lte=1024"`
	ParallelSubFits bool `json:"parallel_sub_fits" yaml:"parallel_sub_fits"`

	// PlotPath, when set, receives a PNG bar chart of the coefficient variances.
	PlotPath string `json:"plot_path" yaml:"plot_path" validate:"omitempty,endswith=.png"`
}

var configValidate = validator.New()

// DefaultConfig returns the setting used throughout the PPI literature
// reproduction: 1000 rows, 200 expert labels and 90% accurate machine labels.
func DefaultConfig() Config {
	return Config{
		Seed:     42,
		Trials:   100,
		Samples:  1000,
		Labelled: 200,
		Accuracy: 0.9,
		Alpha:    0.1,
	}
}

// Validate checks the struct tags and reports the first violation as an
// invalid input error.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed '" + fe.Tag() + "'"
		if fe.Param() != "" {
			reason += " (" + fe.Param() + ")"
		}
		return errors.NewInvalidInputError("experiment.Config", fe.Field(), reason, fe.Value())
	}
	return errors.Wrap(err, "validate experiment config")
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parse experiment config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read experiment config %s", path)
	}
	return ParseConfig(data)
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal experiment config")
	}
	return out, nil
}
