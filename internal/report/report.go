// Package report renders progress exports.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/progress"
)

// SheetName is the worksheet holding the per-lesson rows.
const SheetName = "Progress"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{"Order", "Lesson", "Completed", "Completed At"}

// WriteProgressXLSX writes a workbook with one row per lesson of subject
// followed by the subject's percent-complete.
func WriteProgressXLSX(w io.Writer, subject content.Subject, lessons []content.Lesson, records []progress.Record, percent int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &[]any{subject.Name, subject.Board, subject.ClassLevel}); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A2", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "D2", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	done := completedLessons(records)
	row := 3
	for _, l := range lessons {
		completedAt := ""
		at, ok := done[l.ID]
		if ok {
			completedAt = at.UTC().Format(time.RFC3339)
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, &[]any{l.Order, l.Title, ok, completedAt}); err != nil {
			return fmt.Errorf("write lesson %d: %w", l.ID, err)
		}
		row++
	}

	row++
	summary, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(SheetName, summary, &[]any{"Percent complete", percent}); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := f.SetCellStyle(SheetName, summary, summary, bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 40); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "D", "D", 24); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// completedLessons maps lesson id to its earliest completion time.
func completedLessons(records []progress.Record) map[int64]time.Time {
	out := make(map[int64]time.Time)
	for _, r := range records {
		if !r.Completed || r.Key.LessonID == nil {
			continue
		}
		var at time.Time
		if r.CompletedAt != nil {
			at = *r.CompletedAt
		}
		if prev, ok := out[*r.Key.LessonID]; !ok || at.Before(prev) {
			out[*r.Key.LessonID] = at
		}
	}
	return out
}
