// Package features derives model inputs from raw warehouse readings.
// The trainer and the predictor must apply identical engineering, so both
// go through this package.
package features

import (
	"github.com/realweather/forecast-service/internal/models"
)

// Names lists the model input features, in vector order.
var Names = []string{"temperature", "hour", "humidity"}

// Row is one reading with engineered fields. Target is the next reading's
// temperature; the newest row never has one.
type Row struct {
	Reading   models.Reading
	Hour      int
	DayOfWeek int
	Target    float64
	HasTarget bool
}

// Vector returns the model input for this row, ordered per Names.
func (r Row) Vector() []float64 {
	return []float64{r.Reading.Temperature, float64(r.Hour), r.Reading.Humidity}
}

// Engineer converts readings (ascending by timestamp) into engineered rows.
// Each row's target is the following reading's temperature.
func Engineer(readings []models.Reading) []Row {
	rows := make([]Row, 0, len(readings))
	for i, rd := range readings {
		row := Row{
			Reading:   rd,
			Hour:      rd.Timestamp.Hour(),
			DayOfWeek: int(rd.Timestamp.Weekday()),
		}
		if i+1 < len(readings) {
			row.Target = readings[i+1].Temperature
			row.HasTarget = true
		}
		rows = append(rows, row)
	}
	return rows
}

// TrainingSet extracts (X, y) from the rows that have a target.
func TrainingSet(rows []Row) (x [][]float64, y []float64) {
	for _, r := range rows {
		if !r.HasTarget {
			continue
		}
		x = append(x, r.Vector())
		y = append(y, r.Target)
	}
	return x, y
}

// Latest returns the newest engineered row, the input for a live prediction.
func Latest(rows []Row) (Row, bool) {
	if len(rows) == 0 {
		return Row{}, false
	}
	return rows[len(rows)-1], true
}
