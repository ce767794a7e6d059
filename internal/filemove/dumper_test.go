package filemove

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"movetrack/internal/slogutil"
)

func readDump(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open dump: %v", err)
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer decoder.Close()

	records, err := csv.NewReader(decoder).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func TestCSVDumper_Dump(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	d := NewCSVDumper(dir, "analysis-1", 5, slogutil.NewDiscardLogger())

	m := matrixOf([]string{"r1", "r2"}, []string{"a1", "a2"}, map[[2]int]int{{0, 1}: 97, {1, 0}: 12})
	if err := d.Dump(m); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if d.Path() != filepath.Join(dir, "score-matrix-analysis-1.csv.zst") {
		t.Errorf("Path() = %s", d.Path())
	}
	want := [][]string{
		{"", "k:a1", "k:a2"},
		{"k:r1", "0", "97"},
		{"k:r2", "12", "0"},
	}
	if got := readDump(t, d.Path()); !reflect.DeepEqual(got, want) {
		t.Errorf("dump = %v, want %v", got, want)
	}
}

func TestCSVDumper_KeepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	m := matrixOf([]string{"r"}, []string{"a"}, nil)
	past := time.Now().Add(-time.Hour)

	for i := 0; i < 7; i++ {
		d := NewCSVDumper(dir, fmt.Sprintf("analysis-%d", i), 5, slogutil.NewDiscardLogger())
		if err := d.Dump(m); err != nil {
			t.Fatalf("Dump(%d) error = %v", i, err)
		}
		stamp := past.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(d.Path(), stamp, stamp); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	paths, _ := filepath.Glob(filepath.Join(dir, "score-matrix-*.csv.zst"))
	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	want := []string{
		"score-matrix-analysis-2.csv.zst",
		"score-matrix-analysis-3.csv.zst",
		"score-matrix-analysis-4.csv.zst",
		"score-matrix-analysis-5.csv.zst",
		"score-matrix-analysis-6.csv.zst",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("remaining dumps = %v, want %v", names, want)
	}
}

func TestCSVDumper_KeepBelowOne(t *testing.T) {
	m := matrixOf([]string{"r"}, []string{"a"}, map[[2]int]int{{0, 0}: 90})

	for _, keep := range []int{0, -1} {
		t.Run(fmt.Sprintf("keep=%d", keep), func(t *testing.T) {
			dir := t.TempDir()
			older := NewCSVDumper(dir, "older", 5, slogutil.NewDiscardLogger())
			if err := older.Dump(m); err != nil {
				t.Fatalf("Dump(older) error = %v", err)
			}
			past := time.Now().Add(-time.Hour)
			if err := os.Chtimes(older.Path(), past, past); err != nil {
				t.Fatalf("Chtimes: %v", err)
			}

			d := NewCSVDumper(dir, "current", keep, slogutil.NewDiscardLogger())
			if err := d.Dump(m); err != nil {
				t.Fatalf("Dump() error = %v", err)
			}
			if _, err := os.Stat(d.Path()); err != nil {
				t.Errorf("dump just written is gone: %v", err)
			}
			if _, err := os.Stat(older.Path()); !os.IsNotExist(err) {
				t.Errorf("older dump should be purged, stat err = %v", err)
			}
		})
	}
}

func TestNoopAndCapturingDumpers(t *testing.T) {
	m := matrixOf([]string{"r"}, []string{"a"}, nil)
	if err := (NoopDumper{}).Dump(m); err != nil {
		t.Errorf("NoopDumper.Dump() error = %v", err)
	}

	var c CapturingDumper
	_ = c.Dump(m)
	if got := c.Matrices(); len(got) != 1 || got[0] != m {
		t.Errorf("Matrices() = %v", got)
	}
}
