package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"green-route-server/models"
	"green-route-server/routing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	snap  *routing.Snapshot
	err   error
	block bool
	delay time.Duration
}

func (f *fakeSource) Get(ctx context.Context) (*routing.Snapshot, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.snap, f.err
}

func (f *fakeSource) Ready() bool { return f.snap != nil }

// streets: 1-2-3 along 45.500, 4-5-6 along 45.501, rungs between them,
// and a detached 7-8 segment.
func testSnapshot(t *testing.T) *routing.Snapshot {
	t.Helper()
	g, err := routing.BuildGraph(&routing.NetworkFile{
		Nodes: []routing.NetworkNode{
			{ID: 1, Latitude: 45.5000, Longitude: -73.5700},
			{ID: 2, Latitude: 45.5000, Longitude: -73.5690},
			{ID: 3, Latitude: 45.5000, Longitude: -73.5680},
			{ID: 4, Latitude: 45.5010, Longitude: -73.5700},
			{ID: 5, Latitude: 45.5010, Longitude: -73.5690},
			{ID: 6, Latitude: 45.5010, Longitude: -73.5680},
			{ID: 7, Latitude: 45.6000, Longitude: -73.4000},
			{ID: 8, Latitude: 45.6010, Longitude: -73.4000},
		},
		Edges: []routing.NetworkEdge{
			{FromID: 1, ToID: 2}, {FromID: 2, ToID: 3},
			{FromID: 4, ToID: 5}, {FromID: 5, ToID: 6},
			{FromID: 1, ToID: 4}, {FromID: 2, ToID: 5}, {FromID: 3, ToID: 6},
			{FromID: 7, ToID: 8},
		},
	})
	require.NoError(t, err)
	return routing.Assemble(3, g, routing.LengthTable(g))
}

func newRouter(h *RoutingHandler) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	h.RegisterRoutes(r)
	return r
}

func postRoute(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/routes/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ApiError {
	t.Helper()
	var e models.ApiError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

const validBody = `{"start":{"latitude":45.4999,"longitude":-73.5695},"finish":{"latitude":45.5011,"longitude":-73.5685},"tags":["Nature"]}`

func TestCalculateRouteRaw(t *testing.T) {
	r := newRouter(NewRoutingHandler(&fakeSource{snap: testSnapshot(t)}, time.Second, nil))

	w := postRoute(r, validBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Routes []struct {
			OverviewPolyline struct {
				Points [][2]float64 `json:"points"`
			} `json:"overview_polyline"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 1)

	pts := resp.Routes[0].OverviewPolyline.Points
	require.GreaterOrEqual(t, len(pts), 4)
	assert.Equal(t, [2]float64{-73.5695, 45.4999}, pts[0], "first point is the start as lon, lat")
	assert.Equal(t, [2]float64{-73.5685, 45.5011}, pts[len(pts)-1])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestCalculateRouteEncoded(t *testing.T) {
	r := newRouter(NewRoutingHandler(&fakeSource{snap: testSnapshot(t)}, time.Second, nil))

	body := strings.Replace(validBody, `"tags"`, `"encoded":true,"tags"`, 1)
	w := postRoute(r, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Routes []struct {
			OverviewPolyline struct {
				Points string `json:"points"`
			} `json:"overview_polyline"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 1)
	assert.NotEmpty(t, resp.Routes[0].OverviewPolyline.Points)
}

func TestCalculateRouteErrors(t *testing.T) {
	snap := testSnapshot(t)

	cases := []struct {
		name   string
		source *fakeSource
		body   string
		status int
		msg    string
	}{
		{
			name:   "malformed json",
			source: &fakeSource{snap: snap},
			body:   `{"start":`,
			status: http.StatusBadRequest,
			msg:    msgInvalidInput,
		},
		{
			name:   "missing finish",
			source: &fakeSource{snap: snap},
			body:   `{"start":{"latitude":45.5,"longitude":-73.57}}`,
			status: http.StatusBadRequest,
			msg:    msgInvalidInput,
		},
		{
			name:   "latitude out of range",
			source: &fakeSource{snap: snap},
			body:   `{"start":{"latitude":95,"longitude":-73.57},"finish":{"latitude":45.5,"longitude":-73.57}}`,
			status: http.StatusBadRequest,
			msg:    msgInvalidInput,
		},
		{
			name:   "disconnected",
			source: &fakeSource{snap: snap},
			body:   `{"start":{"latitude":45.4999,"longitude":-73.5695},"finish":{"latitude":45.6005,"longitude":-73.4001}}`,
			status: http.StatusNotFound,
			msg:    msgNoPath,
		},
		{
			name:   "snapshot build failed",
			source: &fakeSource{err: routing.ErrConfiguration},
			body:   validBody,
			status: http.StatusInternalServerError,
			msg:    msgInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(NewRoutingHandler(tc.source, time.Second, nil))
			w := postRoute(r, tc.body)
			assert.Equal(t, tc.status, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tc.msg, e.Error)
			assert.Equal(t, w.Header().Get(RequestIDHeader), e.RequestID)
		})
	}
}

func TestCalculateRouteSearchTimeout(t *testing.T) {
	h := NewRoutingHandler(&fakeSource{snap: testSnapshot(t)}, 20*time.Millisecond, nil)
	release := make(chan struct{})
	defer close(release)
	h.find = func(s *routing.Snapshot, start, finish routing.Coordinate, tags []routing.Tag) (*routing.Route, error) {
		<-release
		return s.FindRoute(start, finish, tags)
	}

	w := postRoute(newRouter(h), validBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgInternal, decodeError(t, w).Error)
}

func TestCalculateRouteWaitsForFirstSnapshot(t *testing.T) {
	// the first build outlasts the search timeout
	src := &fakeSource{snap: testSnapshot(t), delay: 200 * time.Millisecond}
	r := newRouter(NewRoutingHandler(src, 50*time.Millisecond, nil))

	w := postRoute(r, validBody)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCalculateRouteClientGoneWhileWarming(t *testing.T) {
	r := newRouter(NewRoutingHandler(&fakeSource{block: true}, time.Second, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/routes/", strings.NewReader(validBody)).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	get := func(src *fakeSource) models.HealthResponse {
		r := newRouter(NewRoutingHandler(src, time.Second, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	assert.Equal(t, "warming", get(&fakeSource{err: errors.New("not yet")}).Status)

	ready := get(&fakeSource{snap: testSnapshot(t)})
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, int64(3), ready.SnapshotVersion)
}
