package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pagetemplate "github.com/brianwisti/PageTemplate"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "pagetemplate.hcl", `
strict        = true
grammar       = "html"
mode          = "development"
include_paths = ["templates", "shared"]
globals = {
  site = "example.org"
}
`)
	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, cfg.Strict)
	assert.Equal(t, "html", cfg.Grammar)
	assert.Equal(t, []string{"templates", "shared"}, cfg.IncludePaths)
	assert.Equal(t, map[string]string{"site": "example.org"}, cfg.Globals)

	//defaults survive
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "./", cfg.MethodSeparators)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "production", Default().Mode)

	p, err := cfg.Parser(pagetemplate.NewMapSource(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, pagetemplate.Development, p.Mode())
	site, err := p.Get("site")
	require.NoError(t, err)
	assert.Equal(t, "example.org", site)
}

func TestLoadFileErrors(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":  `strict = `,
		"type":    `include_paths = "one"`,
		"grammar": `grammar = "xml"`,
		"unknown": `colour = "red"`,
	} {
		_, err := LoadFile(context.Background(), writeFile(t, "bad.hcl", body))
		assert.Error(t, err, name)
	}

	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cases := []struct {
		name string
		edit func(*File)
	}{
		{"mode", func(f *File) { f.Mode = "staging" }},
		{"grammar", func(f *File) { f.Grammar = "xml" }},
		{"sweep", func(f *File) { f.SweepInterval = "soon" }},
		{"negative sweep", func(f *File) { f.SweepInterval = "-1s" }},
		{"log format", func(f *File) { f.LogFormat = "xml" }},
	}
	for _, c := range cases {
		f := Default()
		c.edit(f)
		assert.Error(t, f.Validate(), c.name)
	}

	f := Default()
	f.SweepInterval = ""
	d, err := f.Sweep()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}

func TestLoadData(t *testing.T) {
	src := pagetemplate.NewMapSource(map[string]string{
		"page": `[% var title %]:[% in items %] [% var __ITEM__ %][% end %] ([% var meta.lang %], [% var count %])`,
	})
	p := pagetemplate.New(pagetemplate.Config{Source: src})

	for name, body := range map[string]string{
		"data.hcl": `
title = "Home"
items = ["a", "b"]
count = 2
meta  = { lang = "en" }
`,
		"data.json": `{"title": "Home", "items": ["a", "b"], "count": 2, "meta": {"lang": "en"}}`,
	} {
		data, err := LoadData(context.Background(), writeFile(t, name, body))
		require.NoError(t, err, name)
		out, err := p.Render("page", data)
		require.NoError(t, err, name)
		assert.Equal(t, "Home: a b (en, 2)", out, name)
	}

	_, err := LoadData(context.Background(), writeFile(t, "bad.json", `{"title": `))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", "json", &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	NewLogger("debug", "text", &buf).Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}
