package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	setsPath  = "/sets"
	cardsPath = "/cards"

	releaseDateLayout = "2006/01/02"
)

// Options parameterise the pokemontcg.io client.
type Options struct {
	BaseURL       string
	APIKey        string
	UserAgent     string
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	SetsPageSize  int
	CardsPageSize int
}

// Set is one expansion set from the sets listing.
type Set struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Series      string `json:"series"`
	ReleaseDate string `json:"releaseDate"`
}

// Card is one card document. Raw keeps the unmodified payload for storage.
type Card struct {
	ID      string
	Name    string
	Number  string
	Rarity  string
	Artist  string
	SetID   string
	SetName string
	Images  json.RawMessage
	Raw     json.RawMessage
}

type cardDoc struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
	Rarity string `json:"rarity"`
	Artist string `json:"artist"`
	Set    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"set"`
	Images json.RawMessage `json:"images"`
}

type pagedResponse struct {
	Data       []json.RawMessage `json:"data"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Count      int               `json:"count"`
	TotalCount int               `json:"totalCount"`
}

// Client pages through the pokemontcg.io v2 API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an API client with retry on transient upstream errors.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.SetsPageSize <= 0 {
		opts.SetsPageSize = 250
	}
	if opts.CardsPageSize <= 0 {
		opts.CardsPageSize = 100
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.pokemontcg.io/v2"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "universe_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// ListSets returns every set the API reports.
func (c *Client) ListSets(ctx context.Context) ([]Set, error) {
	var sets []Set
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("pageSize", strconv.Itoa(c.opts.SetsPageSize))

		resp, err := c.getPage(ctx, setsPath, params)
		if err != nil {
			return nil, fmt.Errorf("list sets page %d: %w", page, err)
		}

		for _, raw := range resp.Data {
			var set Set
			if err := json.Unmarshal(raw, &set); err != nil {
				return nil, fmt.Errorf("decode set: %w", err)
			}
			sets = append(sets, set)
		}

		if len(resp.Data) < c.opts.SetsPageSize {
			break
		}
	}
	return sets, nil
}

// ListSetCards returns every card of one set, raw payloads included.
func (c *Client) ListSetCards(ctx context.Context, setID string) ([]Card, error) {
	var cards []Card
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("q", "set.id:"+setID)
		params.Set("page", strconv.Itoa(page))
		params.Set("pageSize", strconv.Itoa(c.opts.CardsPageSize))

		resp, err := c.getPage(ctx, cardsPath, params)
		if err != nil {
			return nil, fmt.Errorf("list cards for set %s page %d: %w", setID, page, err)
		}

		for _, raw := range resp.Data {
			var doc cardDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode card: %w", err)
			}
			cards = append(cards, Card{
				ID:      doc.ID,
				Name:    doc.Name,
				Number:  doc.Number,
				Rarity:  doc.Rarity,
				Artist:  doc.Artist,
				SetID:   doc.Set.ID,
				SetName: doc.Set.Name,
				Images:  doc.Images,
				Raw:     raw,
			})
		}

		if len(resp.Data) < c.opts.CardsPageSize {
			break
		}
	}
	return cards, nil
}

func (c *Client) getPage(ctx context.Context, path string, params url.Values) (*pagedResponse, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "pokeplatform/1.0")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("X-Api-Key", c.opts.APIKey)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, payload)
	}

	var page pagedResponse
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}

// doWithRetry retries transient failures (transport errors, 429, 5xx) with
// exponential backoff capped at 30s.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	delay := c.opts.RetryBackoff

	for attempt := 0; ; attempt++ {
		resp, err = c.client.Do(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= c.opts.MaxRetries {
			break
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		c.logger.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("url", req.URL.Path).
			Msg("retrying upstream request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}

	return resp, err
}

func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("pokemontcg api error (%d): %s", status, apiErr.Error.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("pokemontcg api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("pokemontcg api error (%d)", status)
}

// parseReleaseDate parses the feed's YYYY/MM/DD release dates. Unparseable or
// empty values yield nil, which exempts the set from the cutoff filter.
func parseReleaseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(releaseDateLayout, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
