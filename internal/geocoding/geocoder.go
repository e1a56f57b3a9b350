package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"propure/server/internal/models"
)

const (
	defaultBaseURL = "https://maps.googleapis.com"
	cacheFileName  = "geocode_cache.json"
	statusOK       = "OK"
)

var ErrNoResults = errors.New("no geocoding results")

// Result is the first match of a geocode lookup. Bounds fall back to the
// viewport and are nil when Google returned neither.
type Result struct {
	Lat     float64        `json:"lat"`
	Lng     float64        `json:"lng"`
	PlaceID string         `json:"place_id,omitempty"`
	Bounds  *models.Bounds `json:"bounds,omitempty"`
}

type Client struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	logger   *logrus.Logger
	cacheDir string

	cache     map[string]Result
	cacheLock sync.RWMutex
	saveLock  sync.Mutex
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithCacheDir persists geocode results under dir. Without it the cache only
// lives in memory.
func WithCacheDir(dir string) Option {
	return func(c *Client) { c.cacheDir = dir }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(apiKey string, logger *logrus.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		timeout: 5 * time.Second,
		logger:  logger,
		cache:   make(map[string]Result),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cacheDir != "" {
		if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
			c.logger.WithError(err).Warn("Could not create geocode cache directory")
		}
		c.loadCache()
	}
	return c
}

func (c *Client) loadCache() {
	data, err := os.ReadFile(filepath.Join(c.cacheDir, cacheFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warnf("Could not load geocode cache: %v", err)
		}
		return
	}

	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	if err := json.Unmarshal(data, &c.cache); err != nil {
		c.logger.Errorf("Failed to parse geocode cache: %v", err)
		c.cache = make(map[string]Result)
		return
	}
	c.logger.Infof("Loaded %d cached addresses", len(c.cache))
}

func (c *Client) saveCache() {
	if c.cacheDir == "" {
		return
	}
	c.saveLock.Lock()
	defer c.saveLock.Unlock()

	c.cacheLock.RLock()
	data, err := json.Marshal(c.cache)
	c.cacheLock.RUnlock()
	if err != nil {
		c.logger.Errorf("Failed to marshal geocode cache: %v", err)
		return
	}

	if err := os.WriteFile(filepath.Join(c.cacheDir, cacheFileName), data, 0644); err != nil {
		c.logger.Errorf("Failed to save geocode cache: %v", err)
	}
}

func cacheKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type box struct {
	Northeast latLng `json:"northeast"`
	Southwest latLng `json:"southwest"`
}

func (b *box) toBounds() *models.Bounds {
	if b == nil {
		return nil
	}
	return &models.Bounds{
		Northeast: models.LatLng{Lat: b.Northeast.Lat, Lng: b.Northeast.Lng},
		Southwest: models.LatLng{Lat: b.Southwest.Lat, Lng: b.Southwest.Lng},
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID  string `json:"place_id"`
		Geometry struct {
			Location latLng `json:"location"`
			Bounds   *box   `json:"bounds"`
			Viewport *box   `json:"viewport"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves free text such as "Richmond, VIC, 3121" to its first match.
func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrNoResults)
	}

	key := cacheKey(address)
	c.cacheLock.RLock()
	if cached, ok := c.cache[key]; ok {
		c.cacheLock.RUnlock()
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"lat":     cached.Lat,
			"lng":     cached.Lng,
			"source":  "cache",
		}).Debug("Found coordinates in cache")
		return &cached, nil
	}
	c.cacheLock.RUnlock()

	var data geocodeResponse
	if err := c.get(ctx, "/maps/api/geocode/json", url.Values{"address": {address}}, &data); err != nil {
		c.logger.WithError(err).WithField("address", address).Error("Geocoding request failed")
		return nil, err
	}

	if data.Status != statusOK || len(data.Results) == 0 {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"status":  data.Status,
		}).Warn("No results found")
		return nil, fmt.Errorf("%w for %q (status %s)", ErrNoResults, address, data.Status)
	}

	first := data.Results[0]
	result := Result{
		Lat:     first.Geometry.Location.Lat,
		Lng:     first.Geometry.Location.Lng,
		PlaceID: first.PlaceID,
	}
	if first.Geometry.Bounds != nil {
		result.Bounds = first.Geometry.Bounds.toBounds()
	} else {
		result.Bounds = first.Geometry.Viewport.toBounds()
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"lat":     result.Lat,
		"lng":     result.Lng,
		"source":  "google",
	}).Info("Successfully geocoded address")

	c.cacheLock.Lock()
	c.cache[key] = result
	c.cacheLock.Unlock()
	c.saveCache()

	return &result, nil
}

// NearbySearch counts the places of one type within radius meters of a point.
// Only the first result page is counted.
func (c *Client) NearbySearch(ctx context.Context, lat, lng float64, placeType string, radius int) (int, error) {
	params := url.Values{
		"location": {strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)},
		"radius":   {strconv.Itoa(radius)},
		"type":     {placeType},
	}

	var data struct {
		Status       string            `json:"status"`
		ErrorMessage string            `json:"error_message"`
		Results      []json.RawMessage `json:"results"`
	}
	if err := c.get(ctx, "/maps/api/place/nearbysearch/json", params, &data); err != nil {
		return 0, err
	}

	switch data.Status {
	case statusOK, "ZERO_RESULTS":
		return len(data.Results), nil
	default:
		return 0, fmt.Errorf("nearby search for %s failed: %s %s", placeType, data.Status, data.ErrorMessage)
	}
}

// DrivingDistances returns the driving distance in km from origin to each
// destination that Google could route. Unroutable destinations are omitted.
func (c *Client) DrivingDistances(ctx context.Context, origin string, destinations []string) ([]float64, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	params := url.Values{
		"origins":      {origin},
		"destinations": {strings.Join(destinations, "|")},
		"mode":         {"driving"},
	}

	var data struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Distance struct {
					Value float64 `json:"value"`
				} `json:"distance"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := c.get(ctx, "/maps/api/distancematrix/json", params, &data); err != nil {
		return nil, err
	}
	if data.Status != statusOK {
		return nil, fmt.Errorf("distance matrix failed: %s", data.Status)
	}
	if len(data.Rows) == 0 {
		return nil, nil
	}

	var km []float64
	for _, e := range data.Rows[0].Elements {
		if e.Status == statusOK {
			km = append(km, e.Distance.Value/1000)
		}
	}
	return km, nil
}
