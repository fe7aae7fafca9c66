package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
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
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
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

func renderAssets(assets []models.Asset) string {
	if len(assets) == 0 {
		return "No assets."
	}
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			a.DisplayTitle(),
			string(a.MediaType),
			formatFrames(a),
			a.Tags,
			a.Path,
		})
	}
	return renderTable(
		[]string{"Name", "Type", "Frames", "Tags", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

func formatFrames(a models.Asset) string {
	if a.Metadata.VideoLength <= 0 {
		return "-"
	}
	return strconv.FormatInt(a.Metadata.VideoLength, 10)
}

func renderReport(rep catalog.Report) string {
	summary := renderTable(
		[]string{"Imported", "Collapsed", "Duplicates", "Skipped", "Cancelled"},
		[][]string{{
			strconv.Itoa(rep.Imported),
			strconv.Itoa(rep.Collapsed),
			strconv.Itoa(rep.Duplicates),
			strconv.Itoa(rep.Skipped),
			strconv.FormatBool(rep.Cancelled),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	)
	if len(rep.Errors) == 0 {
		return summary
	}

	rows := make([][]string, 0, len(rep.Errors))
	for _, e := range rep.Errors {
		rows = append(rows, []string{e.Name, e.Err.Error()})
	}
	return fmt.Sprintf("%s\n%s", summary, renderTable([]string{"File", "Error"}, rows, nil))
}
