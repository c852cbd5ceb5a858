package shipping

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rateFile is the on-disk layout of a rate table:
//
//	default_fee: 3000
//	free_threshold: 150000
//	rates:
//	  Lagos: 2500
//	  Abuja: 3500
type rateFile struct {
	DefaultFee    *float64           `yaml:"default_fee"`
	FreeThreshold *float64           `yaml:"free_threshold"`
	Rates         map[string]float64 `yaml:"rates"`
}

// FileConfig is a rate table read from YAML. Nil pointers mean the file did
// not set the value.
type FileConfig struct {
	DefaultFee    *float64
	FreeThreshold *float64
	Rates         RateTable
}

// LoadRates decodes a YAML rate table.
func LoadRates(r io.Reader) (FileConfig, error) {
	var f rateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{Rates: RateTable{}}, nil
		}
		return FileConfig{}, fmt.Errorf("decode rate table: %w", err)
	}
	rates := make(RateTable, len(f.Rates))
	for name, fee := range f.Rates {
		name = strings.TrimSpace(name)
		if name == "" {
			return FileConfig{}, errors.New("decode rate table: empty region name")
		}
		if fee < 0 {
			return FileConfig{}, fmt.Errorf("decode rate table: negative fee for %q", name)
		}
		rates[name] = fee
	}
	if f.DefaultFee != nil && *f.DefaultFee < 0 {
		return FileConfig{}, errors.New("decode rate table: negative default_fee")
	}
	if f.FreeThreshold != nil && *f.FreeThreshold < 0 {
		return FileConfig{}, errors.New("decode rate table: negative free_threshold")
	}
	return FileConfig{DefaultFee: f.DefaultFee, FreeThreshold: f.FreeThreshold, Rates: rates}, nil
}

// LoadRatesFile reads a YAML rate table from path.
func LoadRatesFile(path string) (FileConfig, error) {
	fh, err := os.Open(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("open rate table: %w", err)
	}
	defer fh.Close()
	return LoadRates(fh)
}

// ParseRates reads "Lagos=2500,Abuja=3500" style rate lists. Region names
// may contain spaces; entries are separated by commas or semicolons.
func ParseRates(value string) (RateTable, error) {
	rates := RateTable{}
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, fee, ok := strings.Cut(field, "=")
		if !ok {
			name, fee, ok = strings.Cut(field, ":")
		}
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parse shipping rate %q: expected region=fee", field)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(fee), 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("parse shipping rate %q: invalid fee", field)
		}
		rates[name] = parsed
	}
	return rates, nil
}

// Merge returns a copy of base with override entries applied on top.
func (t RateTable) Merge(override RateTable) RateTable {
	out := make(RateTable, len(t)+len(override))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
