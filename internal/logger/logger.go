package logger

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alofquist/slinkdash/internal/avr"
)

// Logger records timestamped receiver state to CSV files with automatic
// rotation. Identical consecutive states are collapsed to one row, so a
// file reads as a change history rather than a poll dump.
type Logger struct {
	mu      sync.Mutex
	dir     string
	enabled bool

	file    *os.File
	writer  *csv.Writer
	lastRow string
	rows    int
}

// Config holds logger configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

const maxRowsPerFile = 100_000

var csvHeader = []string{
	"timestamp", "model", "power", "muted", "active_source",
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/slinkdash"
	}
	return &Logger{
		dir:     cfg.Path,
		enabled: cfg.Enabled,
	}
}

// SetEnabled allows toggling logging at runtime.
func (l *Logger) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on && l.file != nil {
		l.closeFile()
	}
}

// IsEnabled returns whether logging is active.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Record writes a receiver snapshot if the state changed since the last
// recorded row.
func (l *Logger) Record(snap avr.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	row := buildRow(time.Now(), snap)
	// Column 0 is the timestamp, everything after it is the state key.
	key := strings.Join(row[1:], "\x1f")
	if key == l.lastRow {
		return
	}

	// Open/rotate file if needed
	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(time.Now()); err != nil {
			log.Printf("[logger] rotate failed: %v", err)
			return
		}
	}

	if err := l.writer.Write(row); err != nil {
		log.Printf("[logger] write failed: %v", err)
		return
	}
	l.writer.Flush()
	l.lastRow = key
	l.rows++
}

// Close flushes and closes the current log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("slinkdash_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.rows = 0

	// Write header
	if err := l.writer.Write(csvHeader); err != nil {
		return err
	}
	l.writer.Flush()

	log.Printf("[logger] opened %s", path)
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func buildRow(ts time.Time, snap avr.Snapshot) []string {
	return []string{
		ts.Format(time.RFC3339),
		snap.Model,
		string(snap.Power),
		boolStr(snap.Muted),
		snap.ActiveSource,
	}
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
