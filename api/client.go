// Package api is the Pipedrive v1 REST client: token auth, rate
// limiting, offset pagination and the typed response envelope. It
// deals in raw records (key→value maps); schemas and expressions live
// elsewhere.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

// pageSize is the record count requested per page. 500 is the API
// maximum.
const pageSize = 500

// Client talks to the Pipedrive REST API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *RateLimiter
}

// New creates a client. limiter may be nil, which disables client-side
// rate limiting (tests).
func New(baseURL, token string, limiter *RateLimiter) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}
}

// Error is a failed API call: HTTP status plus the error text from the
// response envelope when present.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pipedrive API: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("pipedrive API: HTTP %d", e.StatusCode)
}

// envelope is the constant Pipedrive response shape.
type envelope struct {
	Success        bool            `json:"success"`
	Data           json.RawMessage `json:"data"`
	Error          string          `json:"error"`
	ErrorInfo      string          `json:"error_info"`
	AdditionalData struct {
		Pagination pagination `json:"pagination"`
	} `json:"additional_data"`
}

type pagination struct {
	Start                 int  `json:"start"`
	Limit                 int  `json:"limit"`
	MoreItemsInCollection bool `json:"more_items_in_collection"`
	NextStart             int  `json:"next_start"`
}

// do performs one API call, honoring the rate limiter and Retry-After
// on 429 responses.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*envelope, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.token)

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), payload)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			wait := retryAfter(resp)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			// Re-read the body for the retry
			if body != nil {
				data, _ := json.Marshal(body)
				payload = bytes.NewReader(data)
			}
			continue
		}

		var env envelope
		decodeErr := json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()

		if resp.StatusCode >= 400 || (decodeErr == nil && !env.Success) {
			msg := env.Error
			if env.ErrorInfo != "" {
				msg += " (" + env.ErrorInfo + ")"
			}
			return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("%s %s: decoding response: %w", method, path, decodeErr)
		}
		return &env, nil
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 2 * time.Second
}

// ListRecords streams every record of an entity, page by page, calling
// fn for each. fn returning an error stops the scan.
func (c *Client) ListRecords(ctx context.Context, e schema.Entity, fn func(map[string]any) error) error {
	start := 0
	for {
		query := url.Values{}
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(pageSize))

		env, err := c.do(ctx, http.MethodGet, e.Endpoint, query, nil)
		if err != nil {
			return err
		}

		var page []map[string]any
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, &page); err != nil {
				return fmt.Errorf("decoding %s page: %w", e.Name, err)
			}
		}
		for _, rec := range page {
			if err := fn(rec); err != nil {
				return err
			}
		}

		p := env.AdditionalData.Pagination
		if !p.MoreItemsInCollection {
			return nil
		}
		if p.NextStart > start {
			start = p.NextStart
		} else {
			start += pageSize
		}
	}
}

// fieldPayload is the wire shape of one field descriptor.
type fieldPayload struct {
	ID       int    `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Type     string `json:"field_type"`
	EditFlag bool   `json:"edit_flag"`
	Options  []struct {
		ID    int    `json:"id"`
		Label string `json:"label"`
	} `json:"options"`
}

// Fields fetches an entity's field schema. Entities without a fields
// endpoint return an empty schema; the caller derives one from record
// columns.
func (c *Client) Fields(ctx context.Context, e schema.Entity) (*schema.Schema, error) {
	sch, _, err := c.FieldsWithIDs(ctx, e)
	return sch, err
}

// FieldsWithIDs additionally returns the numeric field id for each
// key, needed by the field-update endpoints (option sync).
func (c *Client) FieldsWithIDs(ctx context.Context, e schema.Entity) (*schema.Schema, map[string]int, error) {
	if !e.HasFields() {
		return schema.New(nil), map[string]int{}, nil
	}

	sch := schema.New(nil)
	ids := make(map[string]int)
	start := 0
	for {
		query := url.Values{}
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(pageSize))

		env, err := c.do(ctx, http.MethodGet, e.FieldsEndpoint, query, nil)
		if err != nil {
			return nil, nil, err
		}

		var page []fieldPayload
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, &page); err != nil {
				return nil, nil, fmt.Errorf("decoding %s fields: %w", e.Name, err)
			}
		}
		for _, fp := range page {
			f := schema.Field{
				Key:    fp.Key,
				Name:   fp.Name,
				Type:   fp.Type,
				Custom: fp.EditFlag,
			}
			for _, opt := range fp.Options {
				f.Options = append(f.Options, schema.Option{ID: opt.ID, Label: opt.Label})
			}
			sch.Add(f)
			ids[fp.Key] = fp.ID
		}

		p := env.AdditionalData.Pagination
		if !p.MoreItemsInCollection {
			return sch, ids, nil
		}
		if p.NextStart > start {
			start = p.NextStart
		} else {
			start += pageSize
		}
	}
}

// CreateRecord creates one record and returns the created payload
// (which carries the new id).
func (c *Client) CreateRecord(ctx context.Context, e schema.Entity, fields map[string]any) (map[string]any, error) {
	env, err := c.do(ctx, http.MethodPost, e.Endpoint, nil, fields)
	if err != nil {
		return nil, err
	}
	var created map[string]any
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return nil, fmt.Errorf("decoding created %s: %w", e.Name, err)
	}
	return created, nil
}

// UpdateRecord updates the given fields of one record.
func (c *Client) UpdateRecord(ctx context.Context, e schema.Entity, id string, fields map[string]any) error {
	_, err := c.do(ctx, http.MethodPut, e.Endpoint+"/"+id, nil, fields)
	return err
}

// DeleteRecord deletes one record.
func (c *Client) DeleteRecord(ctx context.Context, e schema.Entity, id string) error {
	_, err := c.do(ctx, http.MethodDelete, e.Endpoint+"/"+id, nil, nil)
	return err
}

// CreateField adds a custom field to an entity.
func (c *Client) CreateField(ctx context.Context, e schema.Entity, name, fieldType string) (schema.Field, error) {
	if !e.HasFields() {
		return schema.Field{}, fmt.Errorf("entity %s has no field schema", e.Name)
	}
	env, err := c.do(ctx, http.MethodPost, e.FieldsEndpoint, nil, map[string]any{
		"name":       name,
		"field_type": fieldType,
	})
	if err != nil {
		return schema.Field{}, err
	}
	var fp fieldPayload
	if err := json.Unmarshal(env.Data, &fp); err != nil {
		return schema.Field{}, fmt.Errorf("decoding created field: %w", err)
	}
	return schema.Field{Key: fp.Key, Name: fp.Name, Type: fp.Type, Custom: fp.EditFlag}, nil
}

// UpdateFieldOptions replaces an enum/set field's option list. New
// options carry label only; existing ones keep their id.
func (c *Client) UpdateFieldOptions(ctx context.Context, e schema.Entity, fieldID int, options []schema.Option) error {
	if !e.HasFields() {
		return fmt.Errorf("entity %s has no field schema", e.Name)
	}
	payload := make([]map[string]any, 0, len(options))
	for _, opt := range options {
		m := map[string]any{"label": opt.Label}
		if opt.ID != 0 {
			m["id"] = opt.ID
		}
		payload = append(payload, m)
	}
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", e.FieldsEndpoint, fieldID), nil, map[string]any{
		"options": payload,
	})
	return err
}
