package scenario

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

// TraceRow is one entity's state after one tick.
type TraceRow struct {
	Tick       int     `csv:"tick"`
	Time       float32 `csv:"time"`
	Entity     string  `csv:"entity"`
	Current    float32 `csv:"current"`
	Max        float32 `csv:"max"`
	BaseMax    float32 `csv:"base_max"`
	KnockedOut bool    `csv:"knocked_out"`
	RegenRate  float32 `csv:"regen_rate"`
	Level      uint32  `csv:"level"`
	// Limits lists the active limits as id:kind:magnitude, separated by ';'.
	Limits string `csv:"limits"`
}

// NewTraceRow flattens a snapshot.
func NewTraceRow(tick int, time float32, s power.Snapshot) TraceRow {
	limits := make([]string, 0, len(s.Limits))
	for _, l := range s.Limits {
		limits = append(limits, fmt.Sprintf("%d:%s:%g", l.ID, l.Kind, l.Magnitude))
	}
	return TraceRow{
		Tick:       tick,
		Time:       time,
		Entity:     string(s.ID),
		Current:    s.Current,
		Max:        s.Max,
		BaseMax:    s.BaseMax,
		KnockedOut: s.KnockedOut,
		RegenRate:  s.RegenRate,
		Level:      s.Level,
		Limits:     strings.Join(limits, ";"),
	}
}

// WriteTrace writes rows as CSV with a header line.
func WriteTrace(w io.Writer, rows []TraceRow) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// TraceWriter streams rows to w, writing the header only before the first batch.
type TraceWriter struct {
	w             io.Writer
	headerWritten bool
}

// NewTraceWriter returns a TraceWriter over w.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{w: w}
}

// Write appends rows. An empty batch writes nothing.
func (t *TraceWriter) Write(rows []TraceRow) error {
	if len(rows) == 0 {
		return nil
	}
	if !t.headerWritten {
		if err := gocsv.Marshal(rows, t.w); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		t.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, t.w); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}
