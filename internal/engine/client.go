package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/model"
)

// Gateway is the full set of remote calls the sync core makes. It is
// implemented by *Client and by enginetest.Fake.
type Gateway interface {
	SetCredentials(creds Credentials)
	Credentials() Credentials

	CreateSession(ctx context.Context) (Credentials, error)
	InitSession(ctx context.Context, m model.Model) (*InitResult, error)
	Status(ctx context.Context) (*Status, error)
	PatchRoom(ctx context.Context, patch model.RoomPatch) (*fingerprint.StateFingerprint, error)

	AddLightSource(ctx context.Context, ls model.LightSource) (AddResult, error)
	UpdateLightSource(ctx context.Context, id string, patch model.LightSourcePatch) (*LightSourceUpdate, error)
	DeleteLightSource(ctx context.Context, id string) (*fingerprint.StateFingerprint, error)
	CopyLightSource(ctx context.Context, id string) (AddResult, error)
	UploadPhotometry(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error)
	UploadSpectrum(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error)
	UploadIntensityMap(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error)
	DeleteIntensityMap(ctx context.Context, id string) (*fingerprint.StateFingerprint, error)
	PlaceLightSource(ctx context.Context, id string, req PlacementRequest) (*Placement, error)

	AddZone(ctx context.Context, z model.Zone) (AddResult, error)
	UpdateZone(ctx context.Context, id string, patch model.ZonePatch) (*ZoneUpdate, error)
	DeleteZone(ctx context.Context, id string) (*fingerprint.StateFingerprint, error)
	CopyZone(ctx context.Context, id string) (AddResult, error)
	FetchZones(ctx context.Context) ([]ZoneState, error)

	FetchStateHashes(ctx context.Context) (*fingerprint.StateFingerprint, error)
	Calculate(ctx context.Context) (*Calculation, error)
	EstimateCalculation(ctx context.Context) (*CalculationEstimate, error)
	CheckLamps(ctx context.Context) (*SafetyCheck, error)
}

// Ensure Client implements Gateway at compile time.
var _ Gateway = (*Client)(nil)

// Client talks to the engine's session HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string

	mu    sync.RWMutex
	creds Credentials

	hashes singleflight.Group
}

const (
	defaultEngineURL = "127.0.0.1:8000"
	defaultUserAgent = "lumen/0.1"
	basePath         = "/api/v1/session"
	maxErrorBody     = 64 << 10

	// DefaultRequestTimeout bounds every call except Calculate.
	DefaultRequestTimeout = 15 * time.Second
	calculateTimeout      = 5 * time.Minute
)

// NewClient builds a Client for engineURL. A zero timeout selects
// DefaultRequestTimeout.
func NewClient(engineURL string, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(engineURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// SetCredentials replaces the session credentials sent with every request.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

// Credentials returns the credentials currently in use.
func (c *Client) Credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// CreateSession asks the engine for fresh credentials. It does not install
// them; callers decide.
func (c *Client) CreateSession(ctx context.Context) (Credentials, error) {
	var payload Credentials
	if err := c.do(ctx, http.MethodPost, "/create", nil, &payload); err != nil {
		return Credentials{}, err
	}
	if payload.SessionID == "" || payload.Token == "" {
		return Credentials{}, fmt.Errorf("create session: incomplete credentials")
	}
	return payload, nil
}

// InitSession replays the whole model into the session.
func (c *Client) InitSession(ctx context.Context, m model.Model) (*InitResult, error) {
	req := initRequest{
		Room:  newRoomConfig(m.Room),
		Lamps: make([]lampInput, 0, len(m.LightSources)),
		Zones: make([]zoneInput, 0, len(m.Zones)),
	}
	for _, ls := range m.LightSources {
		req.Lamps = append(req.Lamps, newLampInput(ls))
	}
	for _, z := range m.Zones {
		req.Zones = append(req.Zones, newZoneInput(z))
	}
	var payload InitResult
	if err := c.do(ctx, http.MethodPost, "/init", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Status reports whether the session exists and holds a room.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var payload Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// PatchRoom sends a partial room update.
func (c *Client) PatchRoom(ctx context.Context, patch model.RoomPatch) (*fingerprint.StateFingerprint, error) {
	var payload successResponse
	if err := c.do(ctx, http.MethodPatch, "/room", newRoomUpdate(patch), &payload); err != nil {
		return nil, err
	}
	return payload.StateHashes, nil
}

// AddLightSource creates a lamp and returns the engine-assigned id.
func (c *Client) AddLightSource(ctx context.Context, ls model.LightSource) (AddResult, error) {
	ls.ID = ""
	var payload addLampResponse
	if err := c.do(ctx, http.MethodPost, "/lamps", newLampInput(ls), &payload); err != nil {
		return AddResult{}, err
	}
	if payload.LampID == "" {
		return AddResult{}, fmt.Errorf("add lamp: engine returned no id")
	}
	return AddResult{ID: payload.LampID, StateHashes: payload.StateHashes}, nil
}

// UpdateLightSource sends a partial lamp update.
func (c *Client) UpdateLightSource(ctx context.Context, id string, patch model.LightSourcePatch) (*LightSourceUpdate, error) {
	var payload LightSourceUpdate
	if err := c.do(ctx, http.MethodPatch, "/lamps/"+id, newLampUpdate(patch), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DeleteLightSource removes a lamp.
func (c *Client) DeleteLightSource(ctx context.Context, id string) (*fingerprint.StateFingerprint, error) {
	var payload successResponse
	if err := c.do(ctx, http.MethodDelete, "/lamps/"+id, nil, &payload); err != nil {
		return nil, err
	}
	return payload.StateHashes, nil
}

// CopyLightSource duplicates a lamp and returns the new id.
func (c *Client) CopyLightSource(ctx context.Context, id string) (AddResult, error) {
	var payload addLampResponse
	if err := c.do(ctx, http.MethodPost, "/lamps/"+id+"/copy", struct{}{}, &payload); err != nil {
		return AddResult{}, err
	}
	if payload.LampID == "" {
		return AddResult{}, fmt.Errorf("copy lamp: engine returned no id")
	}
	return AddResult{ID: payload.LampID, StateHashes: payload.StateHashes}, nil
}

// UploadPhotometry uploads an IES photometric file for a lamp.
func (c *Client) UploadPhotometry(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	return c.upload(ctx, "/lamps/"+id+"/ies", fileName, r)
}

// UploadSpectrum uploads a spectral distribution file for a lamp.
func (c *Client) UploadSpectrum(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	return c.upload(ctx, "/lamps/"+id+"/spectrum", fileName, r)
}

// UploadIntensityMap uploads a near-field intensity map CSV for a lamp.
func (c *Client) UploadIntensityMap(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	return c.upload(ctx, "/lamps/"+id+"/intensity-map", fileName, r)
}

// DeleteIntensityMap removes a lamp's intensity map.
func (c *Client) DeleteIntensityMap(ctx context.Context, id string) (*fingerprint.StateFingerprint, error) {
	var payload successResponse
	if err := c.do(ctx, http.MethodDelete, "/lamps/"+id+"/intensity-map", nil, &payload); err != nil {
		return nil, err
	}
	return payload.StateHashes, nil
}

// PlaceLightSource asks the engine for a position for a lamp. The lamp
// itself is left unchanged.
func (c *Client) PlaceLightSource(ctx context.Context, id string, req PlacementRequest) (*Placement, error) {
	var payload Placement
	if err := c.do(ctx, http.MethodPost, "/lamps/"+id+"/place", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// AddZone creates a zone and returns the engine-assigned id. Standard
// zones keep their reserved id.
func (c *Client) AddZone(ctx context.Context, z model.Zone) (AddResult, error) {
	if !model.IsStandardZoneID(z.ID) {
		z.ID = ""
	}
	var payload addZoneResponse
	if err := c.do(ctx, http.MethodPost, "/zones", newZoneInput(z), &payload); err != nil {
		return AddResult{}, err
	}
	if payload.ZoneID == "" {
		return AddResult{}, fmt.Errorf("add zone: engine returned no id")
	}
	return AddResult{ID: payload.ZoneID, StateHashes: payload.StateHashes}, nil
}

// UpdateZone sends a partial zone update and returns the derived grid.
func (c *Client) UpdateZone(ctx context.Context, id string, patch model.ZonePatch) (*ZoneUpdate, error) {
	var payload ZoneUpdate
	if err := c.do(ctx, http.MethodPatch, "/zones/"+id, newZoneUpdate(patch), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DeleteZone removes a zone.
func (c *Client) DeleteZone(ctx context.Context, id string) (*fingerprint.StateFingerprint, error) {
	var payload successResponse
	if err := c.do(ctx, http.MethodDelete, "/zones/"+id, nil, &payload); err != nil {
		return nil, err
	}
	return payload.StateHashes, nil
}

// CopyZone duplicates a zone and returns the new id.
func (c *Client) CopyZone(ctx context.Context, id string) (AddResult, error) {
	var payload addZoneResponse
	if err := c.do(ctx, http.MethodPost, "/zones/"+id+"/copy", struct{}{}, &payload); err != nil {
		return AddResult{}, err
	}
	if payload.ZoneID == "" {
		return AddResult{}, fmt.Errorf("copy zone: engine returned no id")
	}
	return AddResult{ID: payload.ZoneID, StateHashes: payload.StateHashes}, nil
}

// FetchZones returns the engine's current view of every zone.
func (c *Client) FetchZones(ctx context.Context) ([]ZoneState, error) {
	var payload zonesResponse
	if err := c.do(ctx, http.MethodGet, "/zones", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Zones, nil
}

// FetchStateHashes returns the current fingerprint. Concurrent callers
// share one request; it runs detached from any single caller's context
// (bounded by the client timeout) so one caller giving up does not fail
// the others.
func (c *Client) FetchStateHashes(ctx context.Context) (*fingerprint.StateFingerprint, error) {
	ch := c.hashes.DoChan("state-hashes", func() (any, error) {
		var payload fingerprint.StateFingerprint
		if err := c.do(context.WithoutCancel(ctx), http.MethodGet, "/state-hashes", nil, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		fp := res.Val.(*fingerprint.StateFingerprint).Clone()
		return &fp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Calculate runs the computation and returns its results together with
// the fingerprint it used.
func (c *Client) Calculate(ctx context.Context) (*Calculation, error) {
	ctx, cancel := context.WithTimeout(ctx, calculateTimeout)
	defer cancel()

	var payload calculateResponse
	if err := c.doRequest(ctx, calcHTTP(c.http), http.MethodPost, "/calculate", "", nil, &payload); err != nil {
		return nil, err
	}
	return payload.calculation(), nil
}

// EstimateCalculation returns the expected cost of the next Calculate.
func (c *Client) EstimateCalculation(ctx context.Context) (*CalculationEstimate, error) {
	var payload CalculationEstimate
	if err := c.do(ctx, http.MethodGet, "/calculate/estimate", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CheckLamps runs the engine's safety compliance check on the session.
func (c *Client) CheckLamps(ctx context.Context) (*SafetyCheck, error) {
	var payload SafetyCheck
	if err := c.do(ctx, http.MethodPost, "/check-lamps", struct{}{}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// calcHTTP derives a client without the per-request timeout; Calculate is
// bounded by its context instead.
func calcHTTP(base *http.Client) *http.Client {
	dup := *base
	dup.Timeout = 0
	return &dup
}

func (c *Client) upload(ctx context.Context, path, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	var payload successResponse
	if err := c.doRequest(ctx, c.http, http.MethodPost, path, w.FormDataContentType(), &body, &payload); err != nil {
		return nil, err
	}
	return payload.StateHashes, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, dest any) error {
	if in == nil {
		return c.doRequest(ctx, c.http, method, path, "", nil, dest)
	}
	buf, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.doRequest(ctx, c.http, method, path, "application/json", bytes.NewReader(buf), dest)
}

func (c *Client) doRequest(ctx context.Context, hc *http.Client, method, path, contentType string, body io.Reader, dest any) error {
	rel := &url.URL{Path: basePath + path}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	creds := c.Credentials()
	if creds.SessionID != "" {
		req.Header.Set("X-Session-ID", creds.SessionID)
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classify(method, rel.Path, resp.StatusCode, raw)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(engineURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(engineURL)
	if trimmed == "" {
		trimmed = defaultEngineURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse engine_url %q: %w", engineURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
