package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/travigo/transitlive/pkg/simulator"
)

const testCatalog = `
stops:
  - {id: A, name: Alpha, latitude: 51.5, longitude: -0.1}
  - {id: B, name: Bravo, latitude: 51.6, longitude: -0.2}
  - {id: C, name: Charlie, latitude: 51.7, longitude: -0.3}
routes:
  - id: R1
    name: Route One
    type: bus
    colour: "#000000"
    stops: [A, B]
  - id: R2
    name: Route Two
    type: tram
    stops: [B, C]
`

type staticReader struct {
	catalog string
}

func (r staticReader) ListActiveRoutesWithStops(ctx context.Context) (*catalog.Catalog, error) {
	return catalog.Parse([]byte(r.catalog))
}

func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	config := simulator.DefaultConfig()
	config.TickInterval = time.Hour
	config.GenerationInterval = time.Hour
	config.ExpiryInterval = time.Hour
	config.Seed = 7

	hub := broadcast.NewHub(broadcast.DefaultBufferSize)

	engine, err := simulator.NewEngine(config, staticReader{catalog: testCatalog}, hub)
	require.NoError(t, err)
	engine.Start(context.Background())
	t.Cleanup(func() {
		engine.Stop()
		hub.Close()
	})

	require.Eventually(t, func() bool {
		snapshot, err := engine.Snapshot(context.Background())
		return err == nil && snapshot.Initialised
	}, 5*time.Second, 10*time.Millisecond)

	server := &Server{Engine: engine, Hub: hub}
	return server, server.App()
}

func doRequest(t *testing.T, app *fiber.App, method string, target string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	request := httptest.NewRequest(method, target, reader)
	if body != nil {
		request.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	response, err := app.Test(request, -1)
	require.NoError(t, err)

	responseBody, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	decoded := map[string]interface{}{}
	if len(responseBody) > 0 && responseBody[0] == '{' {
		require.NoError(t, json.Unmarshal(responseBody, &decoded))
	}

	return response, decoded
}

func TestVersion(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodGet, "/core/version", nil)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "transitlive", body["service"])
}

func TestHealth(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodGet, "/core/health", nil)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["initialised"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestHealthStoppedEngine(t *testing.T) {
	server, app := newTestServer(t)
	server.Engine.Stop()

	response, body := doRequest(t, app, http.MethodGet, "/core/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
	assert.Equal(t, "stopped", body["status"])
}

func TestRouteVehicle(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodGet, "/core/routes/R1/vehicle", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	route := body["Route"].(map[string]interface{})
	assert.Equal(t, "R1", route["PrimaryIdentifier"])
	assert.NotContains(t, route, "Description")

	vehicle := body["Vehicle"].(map[string]interface{})
	assert.Equal(t, "R1", vehicle["RouteRef"])
	assert.Equal(t, float64(2), vehicle["TotalStops"])

	stops := body["Stops"].([]interface{})
	require.Len(t, stops, 2)
	assert.Equal(t, "A", stops[0].(map[string]interface{})["StopRef"])
	assert.Equal(t, "B", stops[1].(map[string]interface{})["StopRef"])
}

func TestRouteVehicleDetail(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodGet, "/core/routes/R2/vehicle?detail=true", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	route := body["Route"].(map[string]interface{})
	assert.Equal(t, []interface{}{"B", "C"}, route["Stops"])
}

func TestRouteVehicleNotFound(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodGet, "/core/routes/NOPE/vehicle", nil)

	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	assert.Equal(t, simulator.ErrRouteNotFound.Error(), body["error"])
}

func TestStopPredictions(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodGet, "/core/stops/B/predictions", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	assert.Equal(t, "B", body["StopRef"])

	stop := body["Stop"].(map[string]interface{})
	assert.Equal(t, "Bravo", stop["PrimaryName"])

	predictions := body["Predictions"].([]interface{})
	require.Len(t, predictions, 2)
	for _, raw := range predictions {
		prediction := raw.(map[string]interface{})
		assert.Equal(t, "B", prediction["StopRef"])
		assert.Contains(t, prediction, "SecondsUntilArrival")
	}
}

func TestStopPredictionsNotFound(t *testing.T) {
	_, app := newTestServer(t)

	response, _ := doRequest(t, app, http.MethodGet, "/core/stops/Z/predictions", nil)

	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestServiceAlertLifecycle(t *testing.T) {
	_, app := newTestServer(t)

	validUntil := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	response, created := doRequest(t, app, http.MethodPost, "/core/service_alerts", map[string]interface{}{
		"Title":          "Signal failure",
		"Text":           "Expect delays",
		"AlertType":      "Disruption",
		"Severity":       "Warning",
		"AffectedRoutes": []string{"R1"},
		"ValidUntil":     validUntil,
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)

	identifier := created["PrimaryIdentifier"].(string)
	assert.NotEmpty(t, identifier)
	assert.Equal(t, true, created["Active"])
	assert.NotContains(t, created, "CreatedBy")

	response, _ = doRequest(t, app, http.MethodPost, "/core/service_alerts", map[string]interface{}{
		"Title":          "Another",
		"AlertType":      "Disruption",
		"Severity":       "Info",
		"AffectedRoutes": []string{"R1"},
	})
	assert.Equal(t, http.StatusConflict, response.StatusCode)

	response, fetched := doRequest(t, app, http.MethodGet, "/core/service_alerts/"+identifier, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "Signal failure", fetched["Title"])

	response, updated := doRequest(t, app, http.MethodPut, "/core/service_alerts/"+identifier, map[string]interface{}{
		"Title":    "Signal failure at Alpha",
		"Severity": "Critical",
	})
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "Signal failure at Alpha", updated["Title"])
	assert.Equal(t, "Critical", updated["Severity"])
	assert.Equal(t, "Expect delays", updated["Text"])

	response, deactivated := doRequest(t, app, http.MethodPost, "/core/service_alerts/"+identifier+"/deactivate", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, false, deactivated["Active"])

	response, _ = doRequest(t, app, http.MethodDelete, "/core/service_alerts/"+identifier, nil)
	assert.Equal(t, http.StatusNoContent, response.StatusCode)

	response, _ = doRequest(t, app, http.MethodGet, "/core/service_alerts/"+identifier, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response, _ = doRequest(t, app, http.MethodDelete, "/core/service_alerts/"+identifier, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestServiceAlertInvalid(t *testing.T) {
	_, app := newTestServer(t)

	response, _ := doRequest(t, app, http.MethodPost, "/core/service_alerts", map[string]interface{}{
		"AlertType":      "Delay",
		"AffectedRoutes": []string{"R2"},
	})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, _ = doRequest(t, app, http.MethodPost, "/core/service_alerts", map[string]interface{}{
		"Title":     "Bad type",
		"AlertType": "Meteor",
	})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestServiceAlertList(t *testing.T) {
	_, app := newTestServer(t)

	for _, alert := range []map[string]interface{}{
		{"Title": "Works", "AlertType": "Maintenance", "Severity": "Info", "AffectedRoutes": []string{"R1"}},
		{"Title": "Late", "AlertType": "Delay", "Severity": "Critical", "AffectedRoutes": []string{"R2"}},
	} {
		response, _ := doRequest(t, app, http.MethodPost, "/core/service_alerts", alert)
		require.Equal(t, http.StatusCreated, response.StatusCode)
	}

	request := httptest.NewRequest(http.MethodGet, "/core/service_alerts?severity=Critical", nil)
	response, err := app.Test(request, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)

	var alerts []map[string]interface{}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "Late", alerts[0]["Title"])
}

func TestReinitialize(t *testing.T) {
	_, app := newTestServer(t)

	response, body := doRequest(t, app, http.MethodPost, "/core/simulator/reinitialize", nil)

	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(2), body["routes"])
	assert.Equal(t, float64(2), body["vehicles"])
	assert.Equal(t, float64(4), body["predictions"])
}

func TestGTFSRealtime(t *testing.T) {
	_, app := newTestServer(t)

	request := httptest.NewRequest(http.MethodGet, "/core/gtfs-rt/vehicle-positions?format=json", nil)
	response, err := app.Test(request, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, fiber.MIMEApplicationJSON, response.Header.Get(fiber.HeaderContentType))

	var feed map[string]interface{}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&feed))
	assert.Len(t, feed["entity"], 2)

	request = httptest.NewRequest(http.MethodGet, "/core/gtfs-rt/trip-updates", nil)
	response, err = app.Test(request, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "application/x-protobuf", response.Header.Get(fiber.HeaderContentType))

	response, _ = doRequest(t, app, http.MethodGet, "/core/gtfs-rt/timetables", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}
