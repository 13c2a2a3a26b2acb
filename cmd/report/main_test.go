package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const terraCSV = `date,year,month,lat,lon,co_ppm,aod
2020-01-05,2020,1,0,0,1.0,0.1
2020-01-20,2020,1,0,0,3.0,0.3
2020-02-10,2020,2,0,0,5.0,0.5
`

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terra_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(terraCSV), 0o600))
	return path
}

func TestRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-file", writeCSV(t), "-height", "4"}, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "Showing 3 data points from 2 months")
	assert.Contains(t, out, "Average CO:  3.000 ppm")
	assert.Contains(t, out, "Max CO:      5.000 ppm")
	assert.Contains(t, out, "Average AOD: 0.300")
	assert.Contains(t, out, "Max AOD:     0.500")
	assert.Contains(t, out, "Monthly average CO (ppm)")
	assert.Contains(t, out, "2020-01 .. 2020-02")
}

func TestRun_EmptyWindow(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-file", writeCSV(t), "-start", "2099-01-01", "-end", "2000-01-01"}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Showing 0 data points from 0 months")
	assert.Contains(t, stdout.String(), "Average CO:  0.000 ppm")
	assert.Contains(t, stdout.String(), "No observations in range")
}

func TestRun_XLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "series.xlsx")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-file", writeCSV(t), "-xlsx", out}, &stdout, &stderr))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	period, err := f.GetCellValue("Monthly", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2020-01", period)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad start date", []string{"-start", "01/01/2010"}},
		{"missing file", []string{"-file", filepath.Join(t.TempDir(), "missing.csv")}},
		{"unknown flag", []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Error(t, run(tt.args, &stdout, &stderr))
		})
	}
}
