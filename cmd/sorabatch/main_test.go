package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/theanhybdz2k4/new-sora/pkg/config"
	"github.com/theanhybdz2k4/new-sora/pkg/pool"
	"github.com/theanhybdz2k4/new-sora/pkg/sheet"
)

func TestCmdTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.xlsx")

	code := cmdTemplate([]string{"-config", filepath.Join(dir, "missing.yaml"), "-sheet", path})
	if code != 0 {
		t.Fatalf("cmdTemplate exit = %d, want 0", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not created: %v", err)
	}

	// A second run must not clobber the existing workbook.
	if code := cmdTemplate([]string{"-config", filepath.Join(dir, "missing.yaml"), "-sheet", path}); code != 1 {
		t.Errorf("overwrite exit = %d, want 1", code)
	}
}

func TestHandleEvent_WritesOutcomes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.xlsx")
	if err := sheet.CreateTemplate(path); err != nil {
		t.Fatal(err)
	}

	handler, err := sheet.Open(path, config.DefaultSettings().Defaults)
	if err != nil {
		t.Fatal(err)
	}

	handleEvent(handler, pool.Event{
		Kind:   pool.EventTaskCompleted,
		Slot:   0,
		TaskID: 2,
		Result: &pool.TaskResult{TaskID: 2, Succeeded: true, Message: "completed", ProducedPath: "/out/a.mp4"},
	})
	if err := handler.Save(); err != nil {
		t.Fatal(err)
	}
	handler.Close()

	reopened, err := sheet.Open(path, config.DefaultSettings().Defaults)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	tasks, err := reopened.LoadTasks(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) == 0 {
		t.Fatal("no tasks in template workbook")
	}
	got := tasks[0]
	if got.Status != "completed" || got.Result != "/out/a.mp4" || got.OutputPath != "/out/a.mp4" {
		t.Errorf("row after completion = %+v", got)
	}

	// A failure records the message and leaves the output path alone.
	handleEvent(reopened, pool.Event{
		Kind:   pool.EventTaskCompleted,
		Slot:   1,
		TaskID: 2,
		Result: &pool.TaskResult{TaskID: 2, Succeeded: false, Message: "generation timed out"},
	})
	tasks, err = reopened.LoadTasks(true)
	if err != nil {
		t.Fatal(err)
	}
	if tasks[0].Status != "failed" || tasks[0].Result != "generation timed out" {
		t.Errorf("row after failure = %+v", tasks[0])
	}
}
