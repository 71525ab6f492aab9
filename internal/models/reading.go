package models

import "time"

// Reading is one weather observation appended to the warehouse by the pusher.
// The table is append-only: the pusher writes, the trainer and /data read.
type Reading struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	Timestamp   time.Time `json:"timestamp" gorm:"index"`
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
}

// Forecast is the /predict response payload.
type Forecast struct {
	Status         string         `json:"status"`
	CurrentWeather CurrentWeather `json:"current_weather"`
	ForecastNext   float64        `json:"forecast_next"`
	ModelTrainedAt time.Time      `json:"model_trained_at,omitempty"`
}

// CurrentWeather carries the latest observed values echoed with a forecast.
type CurrentWeather struct {
	Temp float64 `json:"temp"`
}

// DataResponse is the /data response payload.
type DataResponse struct {
	Status   string    `json:"status"`
	RowCount int       `json:"row_count"`
	Rows     []Reading `json:"rows"`
}
