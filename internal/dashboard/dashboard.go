// Package dashboard serves a single server-rendered page that polls the
// forecast API for the latest prediction and recent readings. It talks to
// the API over HTTP like any other client; it never touches the warehouse.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/models"
)

// Server renders the dashboard page.
type Server struct {
	apiURL  string
	client  *http.Client
	refresh time.Duration
	rows    int
	logger  *zap.Logger
	tmpl    *template.Template
}

// NewServer creates a dashboard server. apiURL is the base URL of the
// forecast API (e.g. http://localhost:8000); refresh controls the page's
// auto-reload interval; rows is how many recent readings to show.
func NewServer(apiURL string, timeout, refresh time.Duration, rows int, logger *zap.Logger) (*Server, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("forecast API URL is required")
	}
	if rows < 1 {
		rows = 20
	}
	tmpl, err := template.New("dashboard").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	return &Server{
		apiURL:  apiURL,
		client:  &http.Client{Timeout: timeout},
		refresh: refresh,
		rows:    rows,
		logger:  logger,
		tmpl:    tmpl,
	}, nil
}

// viewData is the template input: whatever the API returned, plus per-section
// error strings so a dead API still renders a page.
type viewData struct {
	Forecast       *models.Forecast
	ForecastError  string
	Data           *models.DataResponse
	DataError      string
	RefreshSeconds int
	GeneratedAt    string
}

// ServeHTTP handles GET /.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	v := viewData{
		RefreshSeconds: int(s.refresh.Seconds()),
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	var forecast models.Forecast
	if err := s.fetchJSON(r.Context(), "/predict", &forecast); err != nil {
		v.ForecastError = "forecast unavailable"
		s.logger.Warn("fetch forecast failed", zap.Error(err))
	} else {
		v.Forecast = &forecast
	}

	var data models.DataResponse
	if err := s.fetchJSON(r.Context(), fmt.Sprintf("/data?limit=%d", s.rows), &data); err != nil {
		v.DataError = "recent readings unavailable"
		s.logger.Warn("fetch readings failed", zap.Error(err))
	} else {
		v.Data = &data
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, v); err != nil {
		s.logger.Error("render dashboard failed", zap.Error(err))
	}
}

// fetchJSON GETs path from the forecast API and decodes the body into out.
func (s *Server) fetchJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call forecast API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("forecast API returned HTTP %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode forecast API response: %w", err)
	}
	return nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
{{if gt .RefreshSeconds 0}}<meta http-equiv="refresh" content="{{.RefreshSeconds}}">{{end}}
<title>Weather Forecast Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; margin-top: 0.5rem; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.8rem; text-align: right; }
th { background: #f0f0f0; }
td:first-child, th:first-child { text-align: left; }
.error { color: #a00; }
.meta { color: #777; font-size: 0.8rem; margin-top: 1.5rem; }
</style>
</head>
<body>
<h1>Weather Forecast Dashboard</h1>

<h2>Forecast</h2>
{{if .ForecastError}}<p class="error">{{.ForecastError}}</p>{{else}}
<table>
<tr><th>Current temperature</th><td>{{printf "%.1f" .Forecast.CurrentWeather.Temp}} &deg;C</td></tr>
<tr><th>Forecast next</th><td>{{printf "%.1f" .Forecast.ForecastNext}} &deg;C</td></tr>
<tr><th>Model trained at</th><td>{{.Forecast.ModelTrainedAt.Format "2006-01-02 15:04 UTC"}}</td></tr>
</table>
{{end}}

<h2>Recent readings</h2>
{{if .DataError}}<p class="error">{{.DataError}}</p>{{else}}
<p>{{.Data.RowCount}} rows</p>
<table>
<tr><th>Timestamp</th><th>City</th><th>Temp &deg;C</th><th>Humidity %</th><th>Wind km/h</th></tr>
{{range .Data.Rows}}
<tr>
<td>{{.Timestamp.Format "2006-01-02 15:04"}}</td>
<td>{{.City}}</td>
<td>{{printf "%.1f" .Temperature}}</td>
<td>{{printf "%.0f" .Humidity}}</td>
<td>{{printf "%.1f" .WindSpeed}}</td>
</tr>
{{end}}
</table>
{{end}}

<p class="meta">Generated {{.GeneratedAt}}</p>
</body>
</html>
`
