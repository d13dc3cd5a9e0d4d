package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/store"
)

// formatClock renders seconds as h:mm:ss.s or m:ss.s.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int64(seconds*10 + 0.5)
	h := tenths / 36000
	m := (tenths / 600) % 60
	s := float64(tenths%600) / 10
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%04.1f", h, m, s)
	}
	return fmt.Sprintf("%d:%04.1f", m, s)
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func handRows(hands []boundary.HandBoundary) [][]string {
	rows := make([][]string, 0, len(hands))
	for _, h := range hands {
		rows = append(rows, []string{
			strconv.Itoa(h.HandID),
			formatClock(h.StartTime),
			formatClock(h.EndTime),
			fmt.Sprintf("%.1fs", h.Duration),
			strconv.Itoa(h.StartFrame),
			strconv.Itoa(h.EndFrame),
			fmt.Sprintf("%.1f", h.OverallConfidence),
		})
	}
	return rows
}

var handHeaders = []string{"Hand", "Start", "End", "Duration", "Start Frame", "End Frame", "Confidence"}

var handAligns = []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

func runRows(runs []*store.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		started := r.StartedAt
		rows = append(rows, []string{
			r.ID,
			r.Source,
			string(r.Status),
			strconv.Itoa(r.FramesProcessed),
			strconv.Itoa(r.Hands),
			formatTimestamp(&started),
		})
	}
	return rows
}

var runHeaders = []string{"ID", "Source", "Status", "Frames", "Hands", "Started"}

var runAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
