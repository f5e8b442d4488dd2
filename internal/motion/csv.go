package motion

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

// CSVHeader names the columns written by CSVWriter.
var CSVHeader = []string{
	"seq", "timestamp",
	"x_pos", "x_vel", "x_acc",
	"y_pos", "y_vel", "y_acc",
	"z_pos", "z_vel", "z_acc",
	"x_stationary", "y_stationary", "z_stationary",
	"distance",
}

// CSVWriter is a Sink that writes one row per sample after a header row.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) Consume(s kalman.MotionSample) error {
	if !c.wroteHeader {
		if err := c.w.Write(CSVHeader); err != nil {
			return err
		}
		c.wroteHeader = true
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	row := []string{
		strconv.FormatUint(s.Seq, 10),
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		f(s.X.Position), f(s.X.Velocity), f(s.X.Acceleration),
		f(s.Y.Position), f(s.Y.Velocity), f(s.Y.Acceleration),
		f(s.Z.Position), f(s.Z.Velocity), f(s.Z.Acceleration),
		strconv.FormatBool(s.Stationary[0]),
		strconv.FormatBool(s.Stationary[1]),
		strconv.FormatBool(s.Stationary[2]),
		f(s.Distance),
	}
	return c.w.Write(row)
}

// Flush writes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
