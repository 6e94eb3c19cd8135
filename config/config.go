// Package config loads the HCL configuration of the pagetemplate command and
// the HCL or JSON data files templates are rendered against.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	pagetemplate "github.com/brianwisti/PageTemplate"
	"github.com/brianwisti/PageTemplate/internal/ctxlog"
)

// File is the decoded configuration file. Attributes left out of the file
// keep the values set by Default.
type File struct {
	Strict           bool              `hcl:"strict,optional"`
	EmptyIsTrue      bool              `hcl:"empty_is_true,optional"`
	DefaultProcessor string            `hcl:"default_processor,optional"`
	MethodSeparators string            `hcl:"method_separators,optional"`
	Grammar          string            `hcl:"grammar,optional"`
	Mode             string            `hcl:"mode,optional"`
	IncludePaths     []string          `hcl:"include_paths,optional"`
	Database         string            `hcl:"database,optional"`
	Listen           string            `hcl:"listen,optional"`
	SweepInterval    string            `hcl:"sweep_interval,optional"`
	LogLevel         string            `hcl:"log_level,optional"`
	LogFormat        string            `hcl:"log_format,optional"`
	Globals          map[string]string `hcl:"globals,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		DefaultProcessor: "unescaped",
		MethodSeparators: "./",
		Grammar:          "default",
		Mode:             "production",
		IncludePaths:     []string{"."},
		Listen:           ":8080",
		SweepInterval:    "1m",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadFile decodes the HCL file at path over Default.
func LoadFile(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)

	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	cfg := Default()
	if diags := gohcl.DecodeBody(f.Body, nil, cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	logger.Debug("Config loaded.", "path", path, "grammar", cfg.Grammar, "mode", cfg.Mode)
	return cfg, nil
}

// Validate checks the values that are not free form.
func (f *File) Validate() error {
	if _, err := f.Glossary(); err != nil {
		return err
	}
	if _, err := pagetemplate.ParseMode(f.Mode); err != nil {
		return err
	}
	if _, err := f.Sweep(); err != nil {
		return err
	}
	switch f.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", f.LogFormat)
	}
	return nil
}

// Glossary returns a new glossary for the configured grammar.
func (f *File) Glossary() (*pagetemplate.Glossary, error) {
	switch strings.ToLower(f.Grammar) {
	case "", "default":
		return pagetemplate.DefaultGlossary(), nil
	case "html":
		return pagetemplate.HTMLGlossary(), nil
	}
	return nil, fmt.Errorf("unknown grammar %q", f.Grammar)
}

// Sweep returns the interval between file cache sweeps.
func (f *File) Sweep() (time.Duration, error) {
	if f.SweepInterval == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(f.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("sweep_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("sweep_interval must be positive, got %s", d)
	}
	return d, nil
}

// Parser builds a parser reading from src with the configured settings.
func (f *File) Parser(src pagetemplate.Source, logger *slog.Logger) (*pagetemplate.Parser, error) {
	g, err := f.Glossary()
	if err != nil {
		return nil, err
	}
	mode, err := pagetemplate.ParseMode(f.Mode)
	if err != nil {
		return nil, err
	}
	ns := make(map[string]any, len(f.Globals))
	for k, v := range f.Globals {
		ns[k] = v
	}
	return pagetemplate.New(pagetemplate.Config{
		Glossary:         g,
		DefaultProcessor: f.DefaultProcessor,
		Source:           src,
		Namespace:        ns,
		MethodSeparators: f.MethodSeparators,
		Strict:           f.Strict,
		EmptyIsTrue:      f.EmptyIsTrue,
		Mode:             mode,
		Logger:           logger,
	}), nil
}

// LoadData evaluates the top level attributes of an HCL file, or the top
// level object of a JSON file, into a cty object.
func LoadData(ctx context.Context, path string) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	var (
		f     *hcl.File
		diags hcl.Diagnostics
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, diags = parser.ParseJSONFile(path)
	} else {
		f, diags = parser.ParseHCLFile(path)
	}
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("failed to parse data file %s: %w", path, diags)
	}

	attrs, diags := f.Body.JustAttributes()
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("failed to read data file %s: %w", path, diags)
	}
	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("failed to evaluate %q in %s: %w", name, path, diags)
		}
		vals[name] = v
	}
	logger.Debug("Data file loaded.", "path", path, "attributes", sortedKeys(vals))
	return cty.ObjectVal(vals), nil
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewLogger builds a text or JSON logger at the named level.
func NewLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}
