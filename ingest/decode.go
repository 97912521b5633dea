package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"fleettemp/pipeline"
)

// DecodeBatch decodes a raw batch. Two layouts are accepted: an array of flat
// records, or an object mapping each column to {row index: value}.
func DecodeBatch(r io.Reader) ([]pipeline.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty batch")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	switch data[0] {
	case '[':
		var rows []pipeline.RawRecord
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return rows, nil
	case '{':
		var cols map[string]map[string]any
		if err := dec.Decode(&cols); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		return fromColumns(cols), nil
	default:
		return nil, fmt.Errorf("unexpected batch start %q", data[0])
	}
}

func fromColumns(cols map[string]map[string]any) []pipeline.RawRecord {
	byIndex := make(map[string]pipeline.RawRecord)
	for col, values := range cols {
		for idx, v := range values {
			rec, ok := byIndex[idx]
			if !ok {
				rec = make(pipeline.RawRecord, len(cols))
				byIndex[idx] = rec
			}
			rec[col] = v
		}
	}

	keys := make([]string, 0, len(byIndex))
	for k := range byIndex {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	out := make([]pipeline.RawRecord, len(keys))
	for i, k := range keys {
		out[i] = byIndex[k]
	}
	return out
}

// IngestFile decodes and ingests one batch file.
func (i *Ingester) IngestFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	raw, err := DecodeBatch(f)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return i.Ingest(ctx, raw)
}

// IngestDir ingests every *.json batch in dir in lexical order. A failing
// file is logged and skipped; the joined errors are returned at the end.
func (i *Ingester) IngestDir(ctx context.Context, dir string) ([]Result, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var (
		results []Result
		errs    []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := i.IngestFile(ctx, path)
		if err != nil {
			i.log.Error("backfill file failed", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		i.log.Info("backfilled file", "path", path, "batch", res.BatchID, "accepted", res.Accepted)
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
