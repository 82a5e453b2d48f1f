package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/forPelevin/chapcut/internal/deps"
	"github.com/forPelevin/chapcut/internal/domain/chapters"
	"github.com/forPelevin/chapcut/internal/domain/naming"
	"github.com/forPelevin/chapcut/internal/pipeline"
	"github.com/forPelevin/chapcut/internal/types"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func planTable(video string, ivs []types.PaddedInterval) string {
	rows := make([][]string, 0, len(ivs))
	for i, iv := range ivs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			chapters.FormatTimestamp(iv.Start),
			chapters.FormatTimestamp(iv.End),
			chapters.FormatTimestamp(iv.Length()),
			iv.Label,
			naming.ClipFile(video, i+1, iv.Label),
		})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Length", "Label", "Clip"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func summaryTable(sum pipeline.Summary) string {
	rows := make([][]string, 0, len(sum.Reports))
	for _, rep := range sum.Reports {
		status := "ok"
		if rep.Err != nil {
			status = rep.Err.Error()
		}
		m := rep.Result.Manifest
		rows = append(rows, []string{
			filepath.Base(rep.Video),
			strconv.Itoa(len(rep.Result.Intervals)),
			strconv.Itoa(len(m.Clips)),
			strconv.Itoa(len(m.Skipped)),
			mergedCell(m.Batches),
			status,
		})
	}
	return renderTable(
		[]string{"Video", "Intervals", "Clips", "Skipped", "Merged", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func mergedCell(batches []types.ManifestBatch) string {
	if len(batches) == 0 {
		return "-"
	}
	failed := 0
	for _, b := range batches {
		if b.Error != "" {
			failed++
		}
	}
	if failed == 0 {
		return strconv.Itoa(len(batches))
	}
	return fmt.Sprintf("%d (%d failed)", len(batches)-failed, failed)
}

func doctorTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "missing"
		if s.Available {
			state = "ok"
		}
		rows = append(rows, []string{s.Name, state, s.Detail, s.Description})
	}
	return renderTable([]string{"Tool", "State", "Detail", "Used for"}, rows, nil)
}
