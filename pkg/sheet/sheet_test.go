package sheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/theanhybdz2k4/new-sora/pkg/config"
)

func testDefaults() config.Defaults {
	return config.Defaults{
		Kind:        "video",
		AspectRatio: "3:2",
		Duration:    "10s",
		Resolution:  "720p",
		Variations:  1,
	}
}

// writeWorkbook builds a workbook from raw rows (header excluded).
func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.xlsx")
	require.NoError(t, CreateTemplate(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// Overwrite the sample row and below.
	for i, row := range rows {
		for j, v := range row {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(SheetName, cellName, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestCreateTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "template.xlsx")
	require.NoError(t, CreateTemplate(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2, "template should have header and sample row")
	assert.Equal(t, Columns, rows[0][:len(Columns)])
}

func TestLoadTasks_DefaultsAndSkips(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"first prompt", "", "", "", "", "", "", "", "", ""},
		{"", "", "", "", "", "", "", "", "", ""}, // blank prompt, skipped
		{"second prompt", "ref.png", "image", "16:9", "", "1080p", 3, "out/x.png", "", ""},
		{"done prompt", "", "video", "", "", "", "", "", "Completed", "already saved"},
	})

	h, err := Open(path, testDefaults())
	require.NoError(t, err)
	defer h.Close()

	tasks, err := h.LoadTasks(false)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	first := tasks[0]
	assert.Equal(t, 2, first.ID)
	assert.Equal(t, "first prompt", first.Prompt)
	assert.Equal(t, "video", first.Kind, "blank kind falls back to default")
	assert.Equal(t, "3:2", first.AspectRatio)
	assert.Equal(t, "10s", first.Duration)
	assert.Equal(t, "720p", first.Resolution)
	assert.Equal(t, 1, first.Variations)

	second := tasks[1]
	assert.Equal(t, 4, second.ID)
	assert.Equal(t, "image", second.Kind)
	assert.Equal(t, "16:9", second.AspectRatio)
	assert.Equal(t, "1080p", second.Resolution)
	assert.Equal(t, 3, second.Variations)
	assert.Equal(t, "out/x.png", second.OutputPath)
}

func TestLoadTasks_IncludeCompleted(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"pending prompt", "", "", "", "", "", "", "", "", ""},
		{"done prompt", "", "", "", "", "", "", "", "success", ""},
	})

	h, err := Open(path, testDefaults())
	require.NoError(t, err)
	defer h.Close()

	tasks, err := h.LoadTasks(true)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = h.LoadTasks(false)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "pending prompt", tasks[0].Prompt)
}

func TestRecordResult_RoundTrip(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"prompt a", "", "", "", "", "", "", "", "", ""},
		{"prompt b", "", "", "", "", "", "", "", "", ""},
	})

	h, err := Open(path, testDefaults())
	require.NoError(t, err)

	require.NoError(t, h.RecordResult(2, "Completed", "saved to out/a.mp4"))
	require.NoError(t, h.RecordResult(3, "Failed", "timeout waiting for generation"))
	require.NoError(t, h.SetOutputPath(2, "out/a.mp4"))
	require.NoError(t, h.Save())
	require.NoError(t, h.Close())

	// Reopen and confirm the writes landed.
	h2, err := Open(path, testDefaults())
	require.NoError(t, err)
	defer h2.Close()

	tasks, err := h2.LoadTasks(true)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Completed", tasks[0].Status)
	assert.Equal(t, "saved to out/a.mp4", tasks[0].Result)
	assert.Equal(t, "out/a.mp4", tasks[0].OutputPath)
	assert.Equal(t, "Failed", tasks[1].Status)
}

func TestRecordResult_RejectsHeaderRow(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"prompt", "", "", "", "", "", "", "", "", ""}})

	h, err := Open(path, testDefaults())
	require.NoError(t, err)
	defer h.Close()

	assert.Error(t, h.RecordResult(1, "Completed", ""))
	assert.Error(t, h.RecordResult(0, "Completed", ""))
}
