package utils

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"sensorhub/internal/models"
)

var csvHeader = []string{"id", "channel_1", "channel_2", "channel_3", "channel_4", "channel_5", "created_at"}

// WriteCSV writes one row per reading. Unset channels are empty cells.
func WriteCSV(w io.Writer, readings []models.Reading) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	row := make([]string, len(csvHeader))
	for _, r := range readings {
		row[0] = strconv.FormatUint(uint64(r.ID), 10)
		for _, ch := range models.AllChannels() {
			row[ch] = ""
			if v, ok := r.Channels.Get(ch); ok {
				row[ch] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		row[len(row)-1] = r.CreatedAt.UTC().Format(time.RFC3339)
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
