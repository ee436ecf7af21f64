package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gardar/untangler/pkg/webanno"
)

type outputConfig struct {
	Kind     string `yaml:"kind"` // "dir" or "sqlite"
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// config is the YAML configuration file
type config struct {
	PageXMLDir        string            `yaml:"pagexml_dir"`
	DocAIDir          string            `yaml:"docai_dir"`
	NavDir            string            `yaml:"nav_dir"`
	LangsTSV          string            `yaml:"langs_tsv"`
	IIIFMappingCSV    string            `yaml:"iiif_mapping_csv"`
	CanvasURLTemplate string            `yaml:"canvas_url_template"`
	TextRepoBaseURL   string            `yaml:"textrepo_base_url"`
	Generator         webanno.Generator `yaml:"generator"`
	Output            outputConfig      `yaml:"output"`
	Workers           int               `yaml:"workers"`
	LogMode           string            `yaml:"log_mode"`
}

// loadConfig reads a YAML file, fills in defaults and checks required keys.
// Relative paths are resolved against the directory of the file.
func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Output.Kind == "" {
		cfg.Output.Kind = "dir"
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = "out"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Generator.Name == "" {
		cfg.Generator.Name = "untangler"
	}

	base := filepath.Dir(path)
	for _, p := range []*string{
		&cfg.PageXMLDir, &cfg.DocAIDir, &cfg.NavDir, &cfg.LangsTSV, &cfg.IIIFMappingCSV, &cfg.Output.Path,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *config) validate() error {
	var errs []error
	if c.PageXMLDir == "" {
		errs = append(errs, errors.New("pagexml_dir is required"))
	}
	if c.TextRepoBaseURL == "" {
		errs = append(errs, errors.New("textrepo_base_url is required"))
	}
	if c.Output.Kind != "dir" && c.Output.Kind != "sqlite" {
		errs = append(errs, fmt.Errorf("output.kind must be dir or sqlite, got %q", c.Output.Kind))
	}
	return errors.Join(errs...)
}
