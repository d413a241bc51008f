// Package sheet reads and writes the task workbook. One row is one
// generation task; the Status and Result columns are written back as the
// pool reports outcomes.
package sheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/theanhybdz2k4/new-sora/pkg/config"
)

// SheetName is the worksheet holding the tasks.
const SheetName = "Tasks"

// Columns is the template header row, in column order.
var Columns = []string{
	"Prompt",
	"ImagePath",
	"Type",
	"AspectRatio",
	"Duration",
	"Resolution",
	"Variations",
	"OutputPath",
	"Status",
	"Result",
}

// Column indexes (1-based, matching the template layout).
const (
	colPrompt = iota + 1
	colImagePath
	colType
	colAspectRatio
	colDuration
	colResolution
	colVariations
	colOutputPath
	colStatus
	colResult
)

// Task is one row of the workbook. ID is the 1-based row number and stays
// stable for the whole run.
type Task struct {
	ID          int
	Prompt      string
	ImagePath   string
	Kind        string
	AspectRatio string
	Duration    string
	Resolution  string
	Variations  int
	OutputPath  string
	Status      string
	Result      string
}

// Handler wraps an open workbook.
type Handler struct {
	path     string
	file     *excelize.File
	defaults config.Defaults
}

// Open loads an existing workbook.
func Open(path string, defaults config.Defaults) (*Handler, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Handler{path: path, file: f, defaults: defaults}, nil
}

// Close releases the workbook without saving.
func (h *Handler) Close() error {
	if h == nil || h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

// Save writes the workbook back to its path.
func (h *Handler) Save() error {
	if h == nil || h.file == nil {
		return fmt.Errorf("workbook not open")
	}
	if err := h.file.SaveAs(h.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", h.path, err)
	}
	return nil
}

// completedStatuses are skipped by LoadTasks unless includeCompleted is set.
var completedStatuses = map[string]bool{
	"completed": true,
	"done":      true,
	"success":   true,
}

// LoadTasks reads the task rows. Rows with a blank prompt are skipped; rows
// already marked completed are skipped unless includeCompleted. Blank option
// cells fall back to the configured defaults.
func (h *Handler) LoadTasks(includeCompleted bool) ([]Task, error) {
	if h == nil || h.file == nil {
		return nil, fmt.Errorf("workbook not open")
	}
	rows, err := h.file.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetName, err)
	}

	var tasks []Task
	for i, row := range rows {
		rowNum := i + 1
		if rowNum == 1 {
			continue // header
		}
		prompt := strings.TrimSpace(cell(row, colPrompt))
		if prompt == "" {
			continue
		}
		status := strings.TrimSpace(cell(row, colStatus))
		if !includeCompleted && completedStatuses[strings.ToLower(status)] {
			continue
		}

		task := Task{
			ID:          rowNum,
			Prompt:      prompt,
			ImagePath:   strings.TrimSpace(cell(row, colImagePath)),
			Kind:        strings.ToLower(orDefault(cell(row, colType), h.defaults.Kind)),
			AspectRatio: orDefault(cell(row, colAspectRatio), h.defaults.AspectRatio),
			Duration:    orDefault(cell(row, colDuration), h.defaults.Duration),
			Resolution:  orDefault(cell(row, colResolution), h.defaults.Resolution),
			Variations:  h.defaults.Variations,
			OutputPath:  strings.TrimSpace(cell(row, colOutputPath)),
			Status:      status,
			Result:      strings.TrimSpace(cell(row, colResult)),
		}
		if v, err := strconv.Atoi(strings.TrimSpace(cell(row, colVariations))); err == nil && v > 0 {
			task.Variations = v
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// RecordResult updates a row's Status and Result cells. The caller decides
// when to Save; workers never touch the workbook directly.
func (h *Handler) RecordResult(taskID int, status, result string) error {
	if h == nil || h.file == nil {
		return fmt.Errorf("workbook not open")
	}
	if taskID < 2 {
		return fmt.Errorf("invalid task row %d", taskID)
	}
	statusCell, err := excelize.CoordinatesToCellName(colStatus, taskID)
	if err != nil {
		return err
	}
	if err := h.file.SetCellValue(SheetName, statusCell, status); err != nil {
		return fmt.Errorf("set status row %d: %w", taskID, err)
	}
	if result != "" {
		resultCell, err := excelize.CoordinatesToCellName(colResult, taskID)
		if err != nil {
			return err
		}
		if err := h.file.SetCellValue(SheetName, resultCell, result); err != nil {
			return fmt.Errorf("set result row %d: %w", taskID, err)
		}
	}
	return nil
}

// SetOutputPath records the produced file path on a row.
func (h *Handler) SetOutputPath(taskID int, path string) error {
	if h == nil || h.file == nil {
		return fmt.Errorf("workbook not open")
	}
	cellName, err := excelize.CoordinatesToCellName(colOutputPath, taskID)
	if err != nil {
		return err
	}
	return h.file.SetCellValue(SheetName, cellName, path)
}

func cell(row []string, col int) string {
	if col-1 < len(row) {
		return row[col-1]
	}
	return ""
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
