//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/roomsense/internal/influx"
	"github.com/mkarlsen/roomsense/internal/models"
	"github.com/mkarlsen/roomsense/internal/server"
)

// These tests need a running InfluxDB; run them with
//
//	go test -tags integration ./integration-tests/...
//
// and point INFLUXDB_HOST / INFLUXDB_ORG / INFLUXDB_TOKEN at it.

const (
	testBucket      = "roomsense-integration"
	testMeasurement = "aht10"
	testPassword    = "integration-secret"
)

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func setupClient(t *testing.T) (influxdb2.Client, *influx.Client) {
	host := getEnvOrDefault("INFLUXDB_HOST", "http://localhost:8086")
	org := getEnvOrDefault("INFLUXDB_ORG", "roomsense")
	token := os.Getenv("INFLUXDB_TOKEN")
	if token == "" {
		t.Skip("INFLUXDB_TOKEN not set; skipping integration tests")
	}

	client := influxdb2.NewClient(host, token)
	t.Cleanup(client.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	return client, influx.NewClient(client.QueryAPI(org), testBucket, testMeasurement, logger)
}

func seedReadings(t *testing.T, client influxdb2.Client, base time.Time, n int) {
	org := getEnvOrDefault("INFLUXDB_ORG", "roomsense")
	writeAPI := client.WriteAPIBlocking(org, testBucket)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		point := influxdb2.NewPoint(
			testMeasurement,
			nil,
			map[string]interface{}{
				"temperature": 20.0 + float64(i)*0.111,
				"humidity":    40.0 + float64(i)*0.057,
			},
			base.Add(time.Duration(i)*time.Minute),
		)
		require.NoError(t, writeAPI.WritePoint(ctx, point))
	}
}

func TestRangeQueryAgainstLiveStore(t *testing.T) {
	client, queryClient := setupClient(t)

	base := time.Now().Add(-2 * time.Hour).Truncate(time.Minute)
	seedReadings(t, client, base, 60)

	startMs := uint64(base.UnixMilli())
	stopMs := uint64(base.Add(time.Hour).UnixMilli())
	bounds, window, err := influx.PlanRange(startMs, stopMs)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seq, err := queryClient.ScalarSeries(ctx, models.FieldTemperature, bounds, window)
	require.NoError(t, err)

	samples := slices.Collect(seq)
	require.NotEmpty(t, samples)

	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i-1].Time, samples[i].Time, "results must be time-sorted")
	}
	for _, s := range samples {
		rounded := float64(int64(s.Value*100+0.5)) / 100
		assert.InDelta(t, rounded, s.Value, 1e-9, "values must carry at most two decimals")
	}
}

func TestLatestAgainstLiveStore(t *testing.T) {
	client, queryClient := setupClient(t)

	now := time.Now().Truncate(time.Second)
	seedReadings(t, client, now.Add(-5*time.Minute), 5)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sample := queryClient.LatestScalar(ctx, models.FieldTemperature)
	require.NotNil(t, sample)
	assert.Greater(t, sample.Time, now.Add(-24*time.Hour).UnixMilli())
}

func TestHTTPEndToEnd(t *testing.T) {
	client, queryClient := setupClient(t)

	base := time.Now().Add(-30 * time.Minute).Truncate(time.Minute)
	seedReadings(t, client, base, 20)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	opts := server.DefaultOptions()
	opts.Client = queryClient
	opts.Logger = logger
	opts.Password = testPassword
	opts.StaticDir = t.TempDir()

	app, err := server.Setup(opts)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/temp/range/1h", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", testPassword))

	resp, err := app.Test(req, 30_000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var samples []models.ScalarSample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&samples))
	assert.NotEmpty(t, samples)
}
