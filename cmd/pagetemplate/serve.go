package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/valyala/fasthttp"

	pagetemplate "github.com/brianwisti/PageTemplate"
)

const indexName = "index.html"

// queryData collects the query arguments of a request. Repeated keys
// become a list.
func queryData(ctx *fasthttp.RequestCtx) map[string]any {
	data := map[string]any{}
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		key, val := string(k), string(v)
		switch prev := data[key].(type) {
		case nil:
			data[key] = val
		case []any:
			data[key] = append(prev, val)
		default:
			data[key] = []any{prev, val}
		}
	})
	return data
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "text/html; charset=utf-8"
}

// newHandler renders the template named by the request path, with the
// query arguments as data.
func newHandler(p *pagetemplate.Parser, log *slog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		name := strings.TrimPrefix(string(ctx.Path()), "/")
		if name == "" || strings.HasSuffix(name, "/") {
			name += indexName
		}

		var buf bytes.Buffer
		err := p.Execute(&buf, name, queryData(ctx))
		switch {
		case errors.Is(err, pagetemplate.ErrNotFound):
			ctx.Error("template not found", fasthttp.StatusNotFound)
			return
		case err != nil:
			log.Error("Render failed.", "name", name, "err", err)
			ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
			return
		}
		ctx.Success(contentType(name), buf.Bytes())
	}
}

// sweeper is implemented by sources whose cache goes stale on its own.
type sweeper interface {
	Sweep() int
}

// startSweeps schedules src.Sweep every interval, when src supports it.
// The returned scheduler is nil otherwise.
func startSweeps(src pagetemplate.Source, every time.Duration, log *slog.Logger) (gocron.Scheduler, error) {
	sw, ok := src.(sweeper)
	if !ok {
		return nil, nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(gocron.DurationJob(every), gocron.NewTask(func() {
		if n := sw.Sweep(); n > 0 {
			log.Debug("Swept template cache.", "dropped", n)
		}
	}))
	if err != nil {
		s.Shutdown()
		return nil, err
	}
	s.Start()
	return s, nil
}

func runServe(ctx context.Context, e env, args []string) error {
	o, _, err := parseOptions(args, "c:l:")
	if err != nil {
		return err
	}
	ctx, cfg, err := setup(ctx, e, o)
	if err != nil {
		return err
	}
	log := logger(ctx)

	p, closer, err := newParser(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	every, err := cfg.Sweep()
	if err != nil {
		return err
	}
	sched, err := startSweeps(p.Source(), every, log)
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Shutdown()
	}

	server := &fasthttp.Server{
		Handler:      newHandler(p, log),
		Name:         "pagetemplate",
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			log.Error("Shutdown failed.", "err", err)
		}
	}()

	log.Info("Serving templates.", "addr", cfg.Listen, "mode", p.Mode(), "grammar", cfg.Grammar)
	return server.ListenAndServe(cfg.Listen)
}
