package utils

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"sensorhub/internal/models"
)

const (
	readingsSheet = "Readings"
	infoSheet     = "Info"
	timeLayout    = "2006-01-02 15:04:05"
)

var excelHeaders = []string{"ID", "Created At", "Channel 1", "Channel 2", "Channel 3", "Channel 4", "Channel 5"}

// WriteExcel writes readings as an XLSX workbook with a line chart per channel and an Info sheet.
func WriteExcel(w io.Writer, readings []models.Reading) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return err
	}

	for i, header := range excelHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(readingsSheet, cell, header); err != nil {
			return err
		}
	}

	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}

	for rowIdx, r := range readings {
		rowNum := rowIdx + 2

		f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", rowNum), r.ID)
		f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", rowNum), r.CreatedAt.UTC().Format(timeLayout))
		for _, ch := range models.AllChannels() {
			v, ok := r.Channels.Get(ch)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(int(ch)+2, rowNum)
			f.SetCellValue(readingsSheet, cell, v)
		}
	}

	lastRow := len(readings) + 1
	if len(readings) > 0 {
		if err := f.SetCellStyle(readingsSheet, "C2", fmt.Sprintf("G%d", lastRow), numberStyle); err != nil {
			return err
		}
	}

	for i := 1; i <= len(excelHeaders); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(readingsSheet, colName, colName, 20)
	}

	if len(readings) > 1 {
		if err := addChart(f, lastRow); err != nil {
			return err
		}
	}

	if err := writeInfoSheet(f, readings); err != nil {
		return err
	}

	return f.Write(w)
}

func addChart(f *excelize.File, lastRow int) error {
	series := make([]excelize.ChartSeries, 0, models.NumChannels)
	for _, ch := range models.AllChannels() {
		col, _ := excelize.ColumnNumberToName(int(ch) + 2)
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", readingsSheet, col),
			Categories: fmt.Sprintf("%s!$B$2:$B$%d", readingsSheet, lastRow),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", readingsSheet, col, col, lastRow),
		})
	}

	return f.AddChart(readingsSheet, "I2", &excelize.Chart{
		Type:   excelize.Line,
		Series: series,
		Title: []excelize.RichTextRun{
			{Text: "Sensor Readings"},
		},
		XAxis: excelize.ChartAxis{MajorGridLines: true},
		YAxis: excelize.ChartAxis{MajorGridLines: true},
		Dimension: excelize.ChartDimension{
			Width:  720,
			Height: 400,
		},
	})
}

func writeInfoSheet(f *excelize.File, readings []models.Reading) error {
	if _, err := f.NewSheet(infoSheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Report Generated", time.Now().UTC().Format(timeLayout)},
		{"Total Records", len(readings)},
	}
	if len(readings) > 0 {
		rows = append(rows, []interface{}{"Time Range", fmt.Sprintf("%s to %s",
			readings[0].CreatedAt.UTC().Format(timeLayout),
			readings[len(readings)-1].CreatedAt.UTC().Format(timeLayout))})
	}
	for _, ch := range models.AllChannels() {
		if lo, hi, ok := channelRange(readings, ch); ok {
			rows = append(rows, []interface{}{fmt.Sprintf("Channel %d Range", ch), fmt.Sprintf("%.2f - %.2f", lo, hi)})
		}
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(infoSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func channelRange(readings []models.Reading, ch models.Channel) (lo, hi float64, ok bool) {
	for _, r := range readings {
		v, set := r.Channels.Get(ch)
		if !set {
			continue
		}
		if !ok || v < lo {
			lo = v
		}
		if !ok || v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}
