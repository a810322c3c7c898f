package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/model"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultEngineURL {
		t.Fatalf("host = %q, want %q", u.Host, defaultEngineURL)
	}

	u, err = parseBaseURL("https://engine.example.com:1234/ignored?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

type recorded struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, rec recorded)) (*Client, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone()}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r, rec)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, 2*time.Second)
	require.NoError(t, err)
	return c, &calls
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_SendsCredentialHeaders(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(Status{Active: true, SessionID: "s-1"})
	})
	ctx := testCtx(t)

	c.SetCredentials(Credentials{SessionID: "s-1", Token: "tok"})
	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Active)

	c.SetCredentials(Credentials{SessionID: "local-only"})
	_, err = c.Status(ctx)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	first, second := (*calls)[0], (*calls)[1]
	assert.Equal(t, "/api/v1/session/status", first.path)
	assert.Equal(t, "s-1", first.header.Get("X-Session-ID"))
	assert.Equal(t, "Bearer tok", first.header.Get("Authorization"))
	assert.Equal(t, defaultUserAgent, first.header.Get("User-Agent"))
	assert.Equal(t, "local-only", second.header.Get("X-Session-ID"))
	assert.Empty(t, second.header.Get("Authorization"), "degraded credentials send no token")
}

func TestClient_CreateSessionRequiresBothFields(t *testing.T) {
	token := "tok"
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(Credentials{SessionID: "s-9", Token: token})
	})
	ctx := testCtx(t)

	creds, err := c.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{SessionID: "s-9", Token: "tok"}, creds)
	assert.Empty(t, c.Credentials().SessionID, "CreateSession must not install credentials")

	token = ""
	_, err = c.CreateSession(ctx)
	assert.Error(t, err)
}

func TestClient_InitSendsActiveResolutionOnly(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(InitResult{Success: true, LampCount: 0, ZoneCount: 3})
	})

	m := model.Default(model.UnitsMeters)
	floor := m.Room.Reflectance.Surfaces[model.SurfaceFloor]
	floor.Mode = model.ModeNumPoints
	m.Room.Reflectance.Surfaces[model.SurfaceFloor] = floor

	res, err := c.InitSession(testCtx(t), m)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ZoneCount)

	body := (*calls)[0].body
	room := body["room"].(map[string]any)
	assert.Equal(t, 4.0, room["x"])
	assert.Equal(t, "ACGIH", room["standard"])
	assert.NotContains(t, room, "colorMap")

	xs := room["reflectance_x_spacings"].(map[string]any)
	xn := room["reflectance_x_num_points"].(map[string]any)
	assert.NotContains(t, xs, "floor")
	assert.Contains(t, xn, "floor")
	assert.Contains(t, xs, "ceiling")
	assert.NotContains(t, xn, "ceiling")

	zones := body["zones"].([]any)
	require.Len(t, zones, 3)
	wrf := zones[0].(map[string]any)
	assert.Equal(t, model.ZoneWholeRoomFluence, wrf["id"])
	assert.Equal(t, true, wrf["isStandard"])
	assert.Contains(t, wrf, "num_z")
	assert.NotContains(t, wrf, "z_spacing")
	eye := zones[1].(map[string]any)
	assert.Equal(t, false, eye["horiz"])
	assert.Equal(t, true, eye["vert"])
	assert.Equal(t, 80.0, eye["fov_vert"])
}

func TestClient_PatchRoomOmitsUnsetFields(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_, _ = io.WriteString(w, `{"success":true,"state_hashes":{"calc_state":{"lamps":"a","reflectance":"r","zones":{}},"update_state":{"lamps":"a","reflectance":"r","zones":{}}}}`)
	})

	fp, err := c.PatchRoom(testCtx(t), model.RoomPatch{X: model.Ptr(10.0)})
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, "a", fp.CalcState.LightSources)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPatch, call.method)
	assert.Equal(t, "/api/v1/session/room", call.path)
	assert.Equal(t, map[string]any{"x": 10.0}, call.body)
}

func TestClient_AddLightSourceUsesEngineID(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "lamp_id": "L-1"})
	})

	res, err := c.AddLightSource(testCtx(t), model.LightSource{ID: "client-guess", LampType: model.LampKrCl222, Z: 2.5, Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "L-1", res.ID)
	assert.Nil(t, res.StateHashes)
	assert.NotContains(t, (*calls)[0].body, "id")
	assert.Equal(t, "krcl_222", (*calls)[0].body["lamp_type"])
}

func TestClient_UpdateZoneReturnsDerivedGrid(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "num_x": 21, "num_y": 31, "x_spacing": 0.2, "y_spacing": 0.2})
	})

	upd, err := c.UpdateZone(testCtx(t), "z 1", model.ZonePatch{XSpacing: model.Ptr(0.2), YSpacing: model.Ptr(0.2)})
	require.NoError(t, err)

	z := model.Zone{}
	upd.ApplyTo(&z)
	assert.Equal(t, 21, z.Resolution.NumX)
	assert.Equal(t, 0.2, z.Resolution.YSpacing)
	assert.Equal(t, "/api/v1/session/zones/z 1", (*calls)[0].path)
	assert.Equal(t, map[string]any{"x_spacing": 0.2, "y_spacing": 0.2}, (*calls)[0].body)
}

func TestClient_MapsSessionExpiry(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		expired bool
	}{
		{name: "unknown session", status: 404, body: `{"detail":"Session not found. Initialize a session first with POST /session/init"}`, expired: true},
		{name: "bad token", status: 401, body: `{"detail":"Invalid session token"}`, expired: true},
		{name: "unknown lamp", status: 404, body: `{"detail":"Lamp L-9 not found"}`, expired: false},
		{name: "validation", status: 422, body: `{"detail":[{"loc":["body","x"],"msg":"bad"}]}`, expired: false},
		{name: "server error", status: 500, body: `oops`, expired: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.DeleteLightSource(testCtx(t), "L-9")
			require.Error(t, err)
			assert.Equal(t, tt.expired, errors.Is(err, ErrSessionExpired))

			var apiErr *APIError
			if !tt.expired {
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.status, apiErr.Status)
				assert.NotEmpty(t, apiErr.Detail)
			}
		})
	}
}

func TestClient_UploadPhotometryIsMultipart(t *testing.T) {
	var gotName, gotContent string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		file, header, err := r.FormFile("file")
		if err == nil {
			raw, _ := io.ReadAll(file)
			gotName, gotContent = header.Filename, string(raw)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	_, err := c.UploadPhotometry(testCtx(t), "L-1", "lamp.ies", strings.NewReader("IESNA:LM-63-2002"))
	require.NoError(t, err)
	assert.Equal(t, "lamp.ies", gotName)
	assert.Equal(t, "IESNA:LM-63-2002", gotContent)
}

func TestClient_CalculateParsesResults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_, _ = io.WriteString(w, `{
			"success": true,
			"calculated_at": "2026-03-04T05:06:07.123456",
			"mean_fluence": 1.5,
			"zones": {"WholeRoomFluence": {"zone_id": "WholeRoomFluence", "zone_name": null, "zone_type": "volume",
				"statistics": {"min": 0.1, "max": 2, "mean": 1.5, "std": null}, "num_points": [25,25,25], "values": [[1,2],[3,4]]}},
			"state_hashes": {"calc_state": {"lamps": "a", "reflectance": "r", "zones": {"WholeRoomFluence": "1"}},
				"update_state": {"lamps": "a", "reflectance": "r", "zones": {"WholeRoomFluence": "u"}}}
		}`)
	})

	calc, err := c.Calculate(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC), calc.Results.CalculatedAt)
	require.NotNil(t, calc.Results.MeanFluence)
	zr := calc.Results.Zones[model.ZoneWholeRoomFluence]
	assert.Equal(t, []int{25, 25, 25}, zr.NumPoints)
	assert.Nil(t, zr.Statistics.Std)
	assert.JSONEq(t, `[[1,2],[3,4]]`, string(zr.Values))
	require.NotNil(t, calc.StateHashes)
	assert.Equal(t, "1", calc.StateHashes.CalcState.Zones[model.ZoneWholeRoomFluence])
}

func TestClient_PlaceLightSourceSendsModeAndIndex(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_, _ = io.WriteString(w, `{"success": true, "x": 0.1, "y": 0.1, "z": 2.9, "angle": 45,
			"aimx": 2, "aimy": 3, "aimz": 0, "mode": "corner", "position_index": 1, "position_count": 4}`)
	})

	p, err := c.PlaceLightSource(testCtx(t), "L-1", PlacementRequest{Mode: PlaceCorner, PositionIndex: model.Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "/api/v1/session/lamps/L-1/place", (*calls)[0].path)
	assert.Equal(t, map[string]any{"mode": "corner", "position_index": float64(1)}, (*calls)[0].body)
	assert.Equal(t, 4, p.PositionCount)

	patch := p.Patch()
	assert.Equal(t, 2.9, *patch.Z)
	assert.Equal(t, 45.0, *patch.Angle)
}

func TestClient_PlaceLightSourceOmitsAutoIndex(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "mode": "downlight"})
	})

	_, err := c.PlaceLightSource(testCtx(t), "L-1", PlacementRequest{})
	require.NoError(t, err)
	assert.Empty(t, (*calls)[0].body)
}

func TestClient_EstimateAndCheckLamps(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		switch r.URL.Path {
		case "/api/v1/session/calculate/estimate":
			_, _ = io.WriteString(w, `{"estimated_seconds": 3.2, "grid_points": 15625, "lamp_count": 2,
				"reflectance_enabled": false, "reflectance_passes": 0, "budget_percent": 41.5}`)
		case "/api/v1/session/check-lamps":
			_, _ = io.WriteString(w, `{"status": "compliant_with_dimming", "max_skin_dose": 600, "max_eye_dose": 150,
				"skin_dimming_for_compliance": 0.8, "eye_dimming_for_compliance": null,
				"lamp_results": {"L-1": {"lamp_id": "L-1", "lamp_name": "Lamp 1", "skin_dimming_required": 0.8,
					"is_skin_compliant": false, "is_eye_compliant": true, "missing_spectrum": false}},
				"warnings": [{"level": "warning", "message": "dim Lamp 1", "lamp_id": "L-1"}]}`)
		}
	})

	est, err := c.EstimateCalculation(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 15625, est.GridPoints)
	assert.Equal(t, 41.5, est.BudgetPercent)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)

	check, err := c.CheckLamps(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, (*calls)[1].method)
	assert.False(t, check.Compliant())
	assert.Equal(t, SafetyCompliantWithDimming, check.Status)
	require.NotNil(t, check.SkinDimmingForCompliance)
	assert.Equal(t, 0.8, *check.SkinDimmingForCompliance)
	assert.Nil(t, check.EyeDimmingForCompliance)
	assert.False(t, check.Lamps["L-1"].SkinCompliant)
	require.Len(t, check.Warnings, 1)
	assert.Equal(t, "L-1", check.Warnings[0].LampID)
}

func TestClient_IntensityMapRoutes(t *testing.T) {
	var gotName string
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		if r.Method == http.MethodPost {
			if _, header, err := r.FormFile("file"); err == nil {
				gotName = header.Filename
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	_, err := c.UploadIntensityMap(testCtx(t), "L-1", "map.csv", strings.NewReader("0,1\n1,1"))
	require.NoError(t, err)
	_, err = c.DeleteIntensityMap(testCtx(t), "L-1")
	require.NoError(t, err)

	assert.Equal(t, "map.csv", gotName)
	require.Len(t, *calls, 2)
	assert.Equal(t, "/api/v1/session/lamps/L-1/intensity-map", (*calls)[0].path)
	assert.Equal(t, http.MethodDelete, (*calls)[1].method)
	assert.Equal(t, "/api/v1/session/lamps/L-1/intensity-map", (*calls)[1].path)
}

func TestClient_FetchStateHashesReturnsCopies(t *testing.T) {
	want := fingerprint.StateFingerprint{
		CalcState:   fingerprint.HashFamily{LightSources: "a", Zones: map[string]string{"z": "1"}},
		UpdateState: fingerprint.HashFamily{LightSources: "a", Zones: map[string]string{"z": "u"}},
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		_ = json.NewEncoder(w).Encode(want)
	})

	got, err := c.FetchStateHashes(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestClient_FetchStateHashesSurvivesCancelledJoiner(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ recorded) {
		once.Do(func() { close(started) })
		<-release
		_ = json.NewEncoder(w).Encode(fingerprint.StateFingerprint{
			CalcState: fingerprint.HashFamily{LightSources: "a"},
		})
	})

	first, cancel := context.WithCancel(testCtx(t))
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.FetchStateHashes(first)
		firstErr <- err
	}()
	<-started

	second := make(chan *fingerprint.StateFingerprint, 1)
	go func() {
		fp, err := c.FetchStateHashes(testCtx(t))
		if err != nil {
			fp = nil
		}
		second <- fp
	}()
	// Let the second caller join the request in flight.
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	fp := <-second
	require.NotNil(t, fp)
	assert.Equal(t, "a", fp.CalcState.LightSources)
	assert.Len(t, *calls, 1)
}

func TestZoneState_ApplyToKeepsClientFields(t *testing.T) {
	local := model.PlaceholderStandardZones(model.DefaultRoom(model.UnitsMeters))[1]
	remote := ZoneState{
		ID:   model.ZoneEyeLimits,
		Type: model.ZonePlane,
		X2:   model.Ptr(10.0),
		Vert: model.Ptr(true),
	}
	remote.ApplyTo(&local)

	assert.Equal(t, 10.0, local.X2)
	assert.Equal(t, model.ModeSpacing, local.Resolution.Mode)
	assert.Equal(t, model.FOVHoriz, local.FOVHoriz)
	assert.Equal(t, "xy", local.RefSurface)
}
