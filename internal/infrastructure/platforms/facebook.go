package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/faults"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// Facebook posts to a page feed through the Graph API. Posts with an
// image go to the photos edge, plain posts to the feed edge.
type Facebook struct {
	pageID      string
	accessToken string
	baseURL     string
	http        *http.Client
}

var _ Sender = (*Facebook)(nil)

// NewFacebook creates a Graph API page client.
func NewFacebook(pageID, accessToken string) *Facebook {
	return &Facebook{
		pageID:      pageID,
		accessToken: accessToken,
		baseURL:     graphAPIBase,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// NewFacebookWithBase points the client at an alternate host, used by tests.
func NewFacebookWithBase(pageID, accessToken, baseURL string) *Facebook {
	f := NewFacebook(pageID, accessToken)
	f.baseURL = baseURL
	return f
}

func (f *Facebook) Name() string { return "facebook" }

// Post publishes one page post and returns the Graph object id.
func (f *Facebook) Post(ctx context.Context, text, imageRef, link string) (string, error) {
	form := url.Values{}
	form.Set("access_token", f.accessToken)

	edge := "feed"
	if imageRef != "" {
		edge = "photos"
		form.Set("url", imageRef)
		form.Set("caption", text)
	} else {
		form.Set("message", text)
		if link != "" {
			form.Set("link", link)
		}
	}

	endpoint := fmt.Sprintf("%s/%s/%s", f.baseURL, f.pageID, edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", faults.Transientf("facebook post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", faults.FromStatus(resp.StatusCode, fmt.Errorf("facebook post: status %s", resp.Status))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode facebook response: %w", err)
	}
	return parsed.ID, nil
}
