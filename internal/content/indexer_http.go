package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPIndexer talks to the external vector-indexing service:
//
//	POST   {base}/contents       body: Content
//	DELETE {base}/contents/{id}
type HTTPIndexer struct {
	base   string
	token  string
	client *http.Client
}

type HTTPIndexerConfig struct {
	BaseURL string
	Token   string // optional bearer token
	Timeout time.Duration
}

func NewHTTPIndexer(cfg HTTPIndexerConfig) *HTTPIndexer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPIndexer{
		base:   strings.TrimSuffix(cfg.BaseURL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPIndexer) Index(ctx context.Context, c Content) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/contents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, "index content")
}

func (h *HTTPIndexer) Remove(ctx context.Context, c Content) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.base+"/contents/"+url.PathEscape(c.ID), nil)
	if err != nil {
		return err
	}
	return h.do(req, "remove content")
}

func (h *HTTPIndexer) do(req *http.Request, what string) error {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// removing something the index never had is fine
	if req.Method == http.MethodDelete && res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%s: %s", what, res.Status)
	}
	return nil
}
