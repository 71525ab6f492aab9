//go:build integration
// +build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestOpenMeteoClient_FetchCurrent_Integration(t *testing.T) {
	if os.Getenv("OPEN_METEO_INTEGRATION") == "" {
		t.Skip("OPEN_METEO_INTEGRATION not set, skipping live upstream test")
	}

	client, err := NewOpenMeteoClient("https://api.open-meteo.com/v1/forecast", 16.047079, 108.206230, "Danang", 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	ctx := context.Background()
	reading, err := client.FetchCurrent(ctx)
	if err != nil {
		t.Fatalf("FetchCurrent() error = %v", err)
	}

	if reading.City != "Danang" {
		t.Errorf("FetchCurrent() city = %q, want Danang", reading.City)
	}
	if reading.Timestamp.IsZero() {
		t.Error("FetchCurrent() returned zero timestamp")
	}
	if reading.Temperature < -50 || reading.Temperature > 60 {
		t.Errorf("FetchCurrent() temperature = %v, outside plausible range", reading.Temperature)
	}
}
