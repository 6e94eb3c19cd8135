package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brianwisti/PageTemplate/sqlsource"
)

func openDatabase(ctx context.Context, e env, args []string, optspec string) (*sqlsource.Source, []string, error) {
	o, rest, err := parseOptions(args, optspec)
	if err != nil {
		return nil, nil, err
	}
	ctx, cfg, err := setup(ctx, e, o)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database == "" {
		return nil, nil, errors.New("no database given, use -b or the database setting")
	}
	src, err := sqlsource.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return src, rest, nil
}

// runImport stores each file under its slash separated path.
func runImport(ctx context.Context, e env, args []string) error {
	src, files, err := openDatabase(ctx, e, args, "c:b:")
	if err != nil {
		return err
	}
	defer src.Close()

	if len(files) == 0 {
		return errors.New("import: expected at least one file")
	}
	for _, file := range files {
		body, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Clean(file))
		if err := src.Put(ctx, name, string(body)); err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, name)
	}
	return nil
}

func runList(ctx context.Context, e env, args []string) error {
	src, _, err := openDatabase(ctx, e, args, "c:b:")
	if err != nil {
		return err
	}
	defer src.Close()

	names, err := src.Names(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(e.stdout, name)
	}
	return nil
}
