package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/effcurve/internal/report"
	"github.com/signalnine/effcurve/internal/result"
)

var records = []result.Record{
	{RunSize: "100000", Energy: "0.06903793103448276", PhotopeakCount: "2345", Efficiency: "23.45", Error: "0.01"},
	{RunSize: "100000", Energy: "0.5", PhotopeakCount: "N/A", Efficiency: "N/A", Error: "N/A"},
	{RunSize: "100000", Energy: "1", PhotopeakCount: "980", Efficiency: "N/A", Error: "0.03"},
}

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curve.csv")
	log, err := result.OpenCSV(path)
	require.NoError(t, err)
	defer log.Close()
	for _, r := range records {
		require.NoError(t, log.Append(context.Background(), r))
	}
	return path
}

func TestGenerateTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Generate(writeLog(t), "table", &buf))
	output := buf.String()
	for _, want := range []string{"NO_EVENT", "0.06903793103448276", "23.45%", "N/A", "3 rows, 2 incomplete"} {
		assert.Contains(t, output, want)
	}
	assert.NotContains(t, output, "N/A%", "sentinel rendered with a percent sign")
}

func TestGenerateMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Generate(writeLog(t), "markdown", &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "| 100000 | 0.5 | N/A | N/A | N/A |", lines[3])
}

func TestGenerateJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Generate(writeLog(t), "json", &buf))
	var doc struct {
		Totals  report.Totals
		Records []map[string]string
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 3, doc.Totals.Rows)
	assert.Equal(t, 2, doc.Totals.Incomplete)
	require.NotEmpty(t, doc.Records)
	assert.Equal(t, "100000", doc.Records[0]["no_event"])
	assert.Equal(t, "23.45", doc.Records[0]["Efficiency"])
}

func TestGenerateCSVIsVerbatim(t *testing.T) {
	path := writeLog(t)
	var buf bytes.Buffer
	require.NoError(t, report.Generate(path, "csv", &buf))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), buf.String())
}

func TestGenerateEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.csv")
	require.NoError(t, result.EnsureInitialized(path))
	var buf bytes.Buffer
	require.NoError(t, report.Generate(path, "json", &buf))
	assert.Contains(t, buf.String(), `"records": []`)
}

func TestGenerateErrors(t *testing.T) {
	err := report.Generate(filepath.Join(t.TempDir(), "missing.csv"), "table", &bytes.Buffer{})
	assert.Error(t, err, "missing log")
	err = report.Generate(writeLog(t), "yaml", &bytes.Buffer{})
	assert.Error(t, err, "unknown format")
}
