package features

import (
	"testing"
	"time"

	"github.com/realweather/forecast-service/internal/models"
)

func readingsAt(temps []float64, start time.Time, step time.Duration) []models.Reading {
	out := make([]models.Reading, len(temps))
	for i, tmp := range temps {
		out[i] = models.Reading{
			Timestamp:   start.Add(time.Duration(i) * step),
			City:        "Danang",
			Temperature: tmp,
			Humidity:    70,
			WindSpeed:   8,
		}
	}
	return out
}

func TestEngineer_TargetIsNextTemperature(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // a Monday
	rows := Engineer(readingsAt([]float64{28, 29, 31}, start, time.Hour))

	if len(rows) != 3 {
		t.Fatalf("Engineer() returned %d rows, want 3", len(rows))
	}

	if !rows[0].HasTarget || rows[0].Target != 29 {
		t.Errorf("rows[0] target = (%v, %v), want (29, true)", rows[0].Target, rows[0].HasTarget)
	}
	if !rows[1].HasTarget || rows[1].Target != 31 {
		t.Errorf("rows[1] target = (%v, %v), want (31, true)", rows[1].Target, rows[1].HasTarget)
	}
	if rows[2].HasTarget {
		t.Error("rows[2].HasTarget = true, want false for the newest row")
	}
}

func TestEngineer_TimeFeatures(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // Monday 09:00
	rows := Engineer(readingsAt([]float64{28, 29}, start, time.Hour))

	if rows[0].Hour != 9 {
		t.Errorf("rows[0].Hour = %d, want 9", rows[0].Hour)
	}
	if rows[0].DayOfWeek != int(time.Monday) {
		t.Errorf("rows[0].DayOfWeek = %d, want %d", rows[0].DayOfWeek, int(time.Monday))
	}
	if rows[1].Hour != 10 {
		t.Errorf("rows[1].Hour = %d, want 10", rows[1].Hour)
	}
}

func TestEngineer_Empty(t *testing.T) {
	if rows := Engineer(nil); len(rows) != 0 {
		t.Errorf("Engineer(nil) returned %d rows, want 0", len(rows))
	}
}

func TestVector_Order(t *testing.T) {
	r := Row{
		Reading: models.Reading{Temperature: 30.5, Humidity: 65},
		Hour:    14,
	}
	got := r.Vector()
	want := []float64{30.5, 14, 65}
	if len(got) != len(want) || len(got) != len(Names) {
		t.Fatalf("Vector() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Vector()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTrainingSet_DropsRowsWithoutTarget(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rows := Engineer(readingsAt([]float64{28, 29, 31}, start, time.Hour))

	x, y := TrainingSet(rows)
	if len(x) != 2 || len(y) != 2 {
		t.Fatalf("TrainingSet() sizes = (%d, %d), want (2, 2)", len(x), len(y))
	}
	if y[0] != 29 || y[1] != 31 {
		t.Errorf("y = %v, want [29 31]", y)
	}
}

func TestLatest(t *testing.T) {
	if _, ok := Latest(nil); ok {
		t.Error("Latest(nil) ok = true, want false")
	}

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rows := Engineer(readingsAt([]float64{28, 33}, start, time.Hour))
	latest, ok := Latest(rows)
	if !ok {
		t.Fatal("Latest() ok = false, want true")
	}
	if latest.Reading.Temperature != 33 {
		t.Errorf("Latest().Reading.Temperature = %v, want 33", latest.Reading.Temperature)
	}
}
