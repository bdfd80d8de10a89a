package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vtol-mixer/mixer"
)

// MixRecord captures one completed mix cycle for the flight log and the
// in-memory history.
type MixRecord struct {
	Timestamp  time.Time
	Strategy   string
	Roll       float64
	Pitch      float64
	Yaw        float64
	Thrust     float64
	Tilt       float64
	Airspeed   float64
	Outputs    []float64
	Saturation mixer.SaturationStatus
	Stale      bool
}

type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

func NewCSVWriter(path string) *CSVWriter {
	// Create data directory if needed
	os.MkdirAll(filepath.Dir(path), 0755)

	w := &CSVWriter{}

	w.file, _ = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	w.writer = csv.NewWriter(w.file)

	// Write header if the file is new
	w.writeHeader()

	return w
}

func (w *CSVWriter) writeHeader() {
	// Check file size, if 0 write header
	info, _ := w.file.Stat()
	if info.Size() == 0 {
		w.writer.Write([]string{
			"iso8601", "ts_ms", "strategy",
			"roll", "pitch", "yaw", "thrust", "tilt", "airspeed",
			"channel", "output", "saturated", "stale",
		})
		w.writer.Flush()
	}
}

// WriteRecord appends one row per actuator channel, long format so the log
// loads straight into analysis tooling without reshaping.
func (w *CSVWriter) WriteRecord(rec MixRecord) {
	saturated := "0"
	if rec.Saturation.Saturated() {
		saturated = "1"
	}
	stale := "0"
	if rec.Stale {
		stale = "1"
	}

	for ch, out := range rec.Outputs {
		row := []string{
			rec.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%d", rec.Timestamp.UnixMilli()),
			rec.Strategy,
			fmt.Sprintf("%.6f", rec.Roll),
			fmt.Sprintf("%.6f", rec.Pitch),
			fmt.Sprintf("%.6f", rec.Yaw),
			fmt.Sprintf("%.6f", rec.Thrust),
			fmt.Sprintf("%.6f", rec.Tilt),
			fmt.Sprintf("%.6f", rec.Airspeed),
			fmt.Sprintf("%d", ch),
			fmt.Sprintf("%.6f", out),
			saturated,
			stale,
		}
		w.writer.Write(row)
	}
	w.writer.Flush()
}

func (w *CSVWriter) Close() {
	if w.writer != nil {
		w.writer.Flush()
		w.file.Close()
	}
}
