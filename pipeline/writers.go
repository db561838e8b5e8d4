package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-wayback-appstats/models"
)

// JSONWriter writes one <app>.json file per app holding an array of
// [updatedDate, appSize] pairs. Files are truncated on every write.
type JSONWriter struct {
	dir     string
	written map[string]int
	order   []string
}

// NewJSONWriter prepares dir for output, creating it if needed.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &JSONWriter{dir: dir, written: make(map[string]int)}, nil
}

// Path returns the file used for appName.
func (jw *JSONWriter) Path(appName string) string {
	return filepath.Join(jw.dir, appName+".json")
}

// WriteStats replaces the app's file with its stats.
func (jw *JSONWriter) WriteStats(stats *models.AppStats) (string, error) {
	path := jw.Path(stats.AppName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create json file: %w", err)
	}

	pairs := stats.Stats
	if pairs == nil {
		pairs = []models.Stat{}
	}

	buffer := bufio.NewWriter(f)
	if err := json.NewEncoder(buffer).Encode(pairs); err != nil {
		f.Close()
		return "", fmt.Errorf("encode json stats: %w", err)
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush json writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close json file: %w", err)
	}

	jw.record(path, len(pairs))
	return path, nil
}

// Close is a no-op; every file is closed by WriteStats.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate reads back every file written and checks it decodes to the same
// number of pairs.
func (jw *JSONWriter) Validate() error {
	for _, path := range jw.order {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read json file: %w", err)
		}
		var decoded []models.Stat
		if err := json.Unmarshal(data, &decoded); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if want := jw.written[path]; len(decoded) != want {
			return fmt.Errorf("%s holds %d stats, want %d", path, len(decoded), want)
		}
	}
	return nil
}

func (jw *JSONWriter) record(path string, n int) {
	if _, ok := jw.written[path]; !ok {
		jw.order = append(jw.order, path)
	}
	jw.written[path] = n
}

// CSVWriter writes one <app>.csv file per app with the snapshot each stat came from.
type CSVWriter struct {
	dir     string
	written map[string]int
	order   []string
}

// NewCSVWriter prepares dir for output, creating it if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &CSVWriter{dir: dir, written: make(map[string]int)}, nil
}

// Path returns the file used for appName.
func (cw *CSVWriter) Path(appName string) string {
	return filepath.Join(cw.dir, appName+".csv")
}

// WriteStats replaces the app's file with a header row and one row per stat.
func (cw *CSVWriter) WriteStats(stats *models.AppStats) (string, error) {
	path := cw.Path(stats.AppName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"updated_date", "app_size", "snapshot_url"}); err != nil {
		f.Close()
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, stat := range stats.Stats {
		if err := writer.Write([]string{stat.UpdatedDate, stat.AppSize, stat.SnapshotURL}); err != nil {
			f.Close()
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush csv records: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close csv file: %w", err)
	}

	if _, ok := cw.written[path]; !ok {
		cw.order = append(cw.order, path)
	}
	cw.written[path] = len(stats.Stats)
	return path, nil
}

// Close is a no-op; every file is closed by WriteStats.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures every file holds its header plus one row per stat.
func (cw *CSVWriter) Validate() error {
	for _, path := range cw.order {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open csv file: %w", err)
		}
		records, err := csv.NewReader(f).ReadAll()
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if want := cw.written[path] + 1; len(records) != want {
			return fmt.Errorf("%s holds %d rows, want %d", path, len(records), want)
		}
	}
	return nil
}

// ensureDir creates dir if missing and checks it accepts new files.
func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	case err != nil:
		return fmt.Errorf("stat directory %q: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("output path %q is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".appstats-probe-*")
	if err != nil {
		return fmt.Errorf("directory %q is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}
