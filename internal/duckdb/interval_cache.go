package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/syncount/syncount/internal/interval"
)

// IntervalCache manages gob-serialized interval sets on disk, so repeated
// runs over unchanged annotation files skip the build:
//
//	{dir}/intervals.gob       (serialized intervals and build stats)
//	{dir}/intervals.gob.meta  (source file fingerprints and build settings)
type IntervalCache struct {
	dir string
}

// NewIntervalCache creates an interval cache for the given directory.
func NewIntervalCache(dir string) *IntervalCache {
	return &IntervalCache{dir: dir}
}

type cachedIntervals struct {
	Intervals []interval.GenomicInterval
	Stats     interval.BuildStats
}

func (ic *IntervalCache) gobPath() string {
	return filepath.Join(ic.dir, "intervals.gob")
}

func (ic *IntervalCache) metaPath() string {
	return filepath.Join(ic.dir, "intervals.gob.meta")
}

// Valid checks whether the cached intervals were built from exactly these
// source files and settings.
func (ic *IntervalCache) Valid(inputs map[string]FileFingerprint, settings map[string]string) bool {
	meta, err := ic.readMeta()
	if err != nil {
		return false
	}

	want := metaLines(inputs, settings)
	if len(meta) != len(want) {
		return false
	}
	for k, v := range want {
		if meta[k] != v {
			return false
		}
	}

	// Verify gob file exists
	if _, err := os.Stat(ic.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the cached interval set.
func (ic *IntervalCache) Load() ([]interval.GenomicInterval, interval.BuildStats, error) {
	f, err := os.Open(ic.gobPath())
	if err != nil {
		return nil, interval.BuildStats{}, fmt.Errorf("open interval cache: %w", err)
	}
	defer f.Close()

	var data cachedIntervals
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, interval.BuildStats{}, fmt.Errorf("decode interval cache: %w", err)
	}
	return data.Intervals, data.Stats, nil
}

// Write serializes an interval set with the fingerprints of its sources and
// the settings it was built with.
func (ic *IntervalCache) Write(ivs []interval.GenomicInterval, stats interval.BuildStats, inputs map[string]FileFingerprint, settings map[string]string) error {
	if err := os.MkdirAll(ic.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	f, err := os.Create(ic.gobPath())
	if err != nil {
		return fmt.Errorf("create interval cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(cachedIntervals{Intervals: ivs, Stats: stats}); err != nil {
		f.Close()
		os.Remove(ic.gobPath())
		return fmt.Errorf("encode interval cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close interval cache: %w", err)
	}

	return ic.writeMeta(metaLines(inputs, settings))
}

// Clear removes the cached interval files.
func (ic *IntervalCache) Clear() {
	os.Remove(ic.gobPath())
	os.Remove(ic.metaPath())
}

// metaLines flattens fingerprints and settings into meta file entries.
// Settings are prefixed so they never collide with a fingerprint role.
func metaLines(inputs map[string]FileFingerprint, settings map[string]string) map[string]string {
	m := make(map[string]string, 2*len(inputs)+len(settings))
	for role, fp := range inputs {
		m[role+"_size"] = strconv.FormatInt(fp.Size, 10)
		m[role+"_modtime"] = fp.ModTime.UTC().Format(time.RFC3339Nano)
	}
	for k, v := range settings {
		m["setting_"+k] = v
	}
	return m
}

func (ic *IntervalCache) writeMeta(m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		lines = append(lines, k+"="+m[k])
	}
	lines = append(lines, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(ic.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

// readMeta returns the fingerprint entries of the meta file.
func (ic *IntervalCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(ic.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok && k != "created_at" {
			meta[k] = v
		}
	}
	return meta, nil
}
