package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	pagetemplate "github.com/brianwisti/PageTemplate"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func runCommand(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCommand(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: pagetemplate")

	code, _, stderr = runCommand(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, stderr = runCommand(t, "render")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "expected at least one template name")
}

func TestRunRender(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"templates/page.txt": "Hello, [% var name %] from [% var site %]",
		"data.json":          `{"name": "World"}`,
		"config.hcl": `
include_paths = ["` + filepath.ToSlash(filepath.Join(dir, "templates")) + `"]
log_level     = "error"
globals = {
  site = "home"
}
`,
	})
	cfg := filepath.Join(dir, "config.hcl")
	data := filepath.Join(dir, "data.json")

	code, stdout, stderr := runCommand(t, "render", "-c", cfg, "-d", data, "page.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Hello, World from home", stdout)

	code, _, stderr = runCommand(t, "render", "-c", cfg, "-s", "page.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `resolving "name"`)

	code, _, stderr = runCommand(t, "render", "-c", cfg, "missing.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "template not found")
}

func TestRunDump(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.txt":  "a[% var x %]",
		"page.tmpl": `a<TMPL_VAR x>`,
		"bad.txt":   "[% if x %]",
	})

	code, stdout, stderr := runCommand(t, "dump", filepath.Join(dir, "page.txt"))
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "[document]"), stdout)
	assert.Contains(t, stdout, "x")

	code, html, stderr := runCommand(t, "dump", "-g", "html", filepath.Join(dir, "page.tmpl"))
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, stdout, html)

	code, _, stderr = runCommand(t, "dump", filepath.Join(dir, "bad.txt"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unclosed if")
}

func TestRunImportList(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.txt": "[% include a.txt %]!",
		"a.txt": "A",
	})
	db := filepath.Join(dir, "templates.db")

	t.Chdir(dir)
	code, stdout, stderr := runCommand(t, "import", "-b", db, "b.txt", "./a.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "b.txt\na.txt\n", stdout)

	code, stdout, stderr = runCommand(t, "list", "-b", db)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "a.txt\nb.txt\n", stdout)

	writeFiles(t, dir, map[string]string{
		"config.hcl": `database = "` + filepath.ToSlash(db) + `"
log_level = "error"`,
	})
	code, stdout, stderr = runCommand(t, "render", "-c", "config.hcl", "b.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "A!", stdout)

	code, _, stderr = runCommand(t, "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no database given")
}

func serveRequest(t *testing.T, h fasthttp.RequestHandler, uri string) *fasthttp.RequestCtx {
	t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(uri)
	h(ctx)
	return ctx
}

func TestHandler(t *testing.T) {
	src := pagetemplate.NewMapSource(map[string]string{
		"index.html":      "<h1>[% var title :escapeHTML %]</h1>",
		"docs/index.html": "docs",
		"feed.xml":        "<feed>[% in tag %][% var __ITEM__ %];[% end %]</feed>",
		"bad.html":        "[% if x %]",
	})
	p := pagetemplate.New(pagetemplate.Config{Source: src})
	h := newHandler(p, logger(context.Background()))

	ctx := serveRequest(t, h, "/?title=a%26b")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "<h1>a&amp;b</h1>", string(ctx.Response.Body()))
	assert.Equal(t, "text/html; charset=utf-8", string(ctx.Response.Header.ContentType()))

	ctx = serveRequest(t, h, "/docs/")
	assert.Equal(t, "docs", string(ctx.Response.Body()))

	ctx = serveRequest(t, h, "/feed.xml?tag=a&tag=b")
	assert.Equal(t, "<feed>a;b;</feed>", string(ctx.Response.Body()))
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "xml")

	ctx = serveRequest(t, h, "/nope.html")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = serveRequest(t, h, "/bad.html")
	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
}

func TestQueryData(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/?a=1&b=2&b=3&b=4")
	assert.Equal(t, map[string]any{
		"a": "1",
		"b": []any{"2", "3", "4"},
	}, queryData(ctx))
}

func TestStartSweeps(t *testing.T) {
	s, err := startSweeps(pagetemplate.NewMapSource(nil), 0, logger(context.Background()))
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = startSweeps(pagetemplate.NewFileSource(t.TempDir()), 10*time.Millisecond, logger(context.Background()))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, s.Shutdown())
}
