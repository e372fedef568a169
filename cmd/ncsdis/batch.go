package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ncsdis/internal/cache"
	"ncsdis/internal/ncs"
	"ncsdis/internal/output"
)

func cmdBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	dir := fs.String("dir", "", "input directory with compiled scripts")
	out := fs.String("out", "", "output directory")
	profPath := fs.String("profile", "", "game profile TOML")
	jobs := fs.Int("jobs", 0, "parallel workers, 0 = NumCPU")
	noCache := fs.Bool("no-cache", false, "ignore and do not update the result cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if *out == "" {
		return fmt.Errorf("--out is required")
	}

	prof, err := loadProfileFlag(*profPath)
	if err != nil {
		return err
	}

	files, err := listScripts(*dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .ncs files under %s", *dir)
	}

	var store *cache.Cache
	if !*noCache {
		store, err = cache.Open(filepath.Join(*out, ".cache"))
		if err != nil {
			return err
		}
	}

	workers := *jobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	// Indexes are unique per goroutine, no mutex needed.
	summaries := make([]*output.Summary, len(files))
	hits := make([]bool, len(files))

	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			s, hit, err := analyzeOne(path, prof, store)
			if err != nil {
				return err
			}
			summaries[i] = s
			hits[i] = hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	cached := 0
	for _, h := range hits {
		if h {
			cached++
		}
	}
	fmt.Fprintf(os.Stderr, "analyzed %d scripts (%d cached)\n", len(files), cached)

	return writeBatchReport(*out, summaries)
}

// analyzeOne parses and analyzes a single script, consulting the cache first.
func analyzeOne(path string, prof ncs.ActionTable, store *cache.Cache) (*output.Summary, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	name := scriptName(path)
	key := cache.Key(data)

	var payload cache.Payload
	if ok, err := store.Get(key, &payload); err == nil && ok {
		return payloadToSummary(name, &payload), true, nil
	}

	f, err := ncs.LoadBytes(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	// Best effort; a failed pass still yields a usable summary.
	_ = f.AnalyzeStack(prof)

	s := output.Summarize(name, f)
	if err := store.Put(key, summaryToPayload(s)); err != nil {
		return nil, false, fmt.Errorf("cache %s: %w", path, err)
	}
	return s, false, nil
}

func listScripts(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".ncs") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func writeBatchReport(dir string, summaries []*output.Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, s := range summaries {
		sub := filepath.Join(dir, s.File)
		if err := os.MkdirAll(sub, 0755); err != nil {
			return err
		}
		if err := output.WriteSummaryJSON(sub, s); err != nil {
			return err
		}
	}
	return nil
}

func summaryToPayload(s *output.Summary) *cache.Payload {
	return &cache.Payload{
		File:         s.File,
		Size:         s.Size,
		Instructions: s.Instructions,
		Blocks:       s.Blocks,
		SubRoutines:  s.SubRoutines,
		Start:        s.Start,
		Global:       s.Global,
		Main:         s.Main,
		StackOK:      s.StackOK,
		Variables:    s.Variables,
		Globals:      s.Globals,
		Diags:        s.Diags,
	}
}

func payloadToSummary(name string, p *cache.Payload) *output.Summary {
	return &output.Summary{
		File:         name,
		Size:         p.Size,
		Instructions: p.Instructions,
		Blocks:       p.Blocks,
		SubRoutines:  p.SubRoutines,
		Start:        p.Start,
		Global:       p.Global,
		Main:         p.Main,
		StackOK:      p.StackOK,
		Variables:    p.Variables,
		Globals:      p.Globals,
		Diags:        p.Diags,
	}
}
