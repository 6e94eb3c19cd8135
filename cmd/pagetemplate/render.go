package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/brianwisti/PageTemplate/config"
)

func runRender(ctx context.Context, e env, args []string) error {
	o, names, err := parseOptions(args, "c:d:g:s")
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("render: expected at least one template name")
	}
	ctx, cfg, err := setup(ctx, e, o)
	if err != nil {
		return err
	}

	var data any
	if o.data != "" {
		val, err := config.LoadData(ctx, o.data)
		if err != nil {
			return err
		}
		data = val
	}

	p, closer, err := newParser(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	for _, name := range names {
		if err := p.Execute(e.stdout, name, data); err != nil {
			return err
		}
	}
	return nil
}

func runDump(ctx context.Context, e env, args []string) error {
	o, files, err := parseOptions(args, "g:")
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return errors.New("dump: expected one template file")
	}
	ctx, cfg, err := setup(ctx, e, o)
	if err != nil {
		return err
	}

	text, err := os.ReadFile(files[0])
	if err != nil {
		return err
	}
	p, err := cfg.Parser(nil, logger(ctx))
	if err != nil {
		return err
	}
	doc, err := p.Parse(string(text))
	if err != nil {
		return fmt.Errorf("%s: %w", files[0], err)
	}
	fmt.Fprintln(e.stdout, doc)
	return nil
}
