package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newsdesk/internal/faults"
)

const (
	twitterAPIBase = "https://api.twitter.com/2"
	tweetMaxLen    = 280
)

// Twitter posts tweets through the v2 API with bearer authentication.
type Twitter struct {
	bearerToken string
	baseURL     string
	http        *http.Client
}

var _ Sender = (*Twitter)(nil)

// NewTwitter creates a v2 API client.
func NewTwitter(bearerToken string) *Twitter {
	return &Twitter{
		bearerToken: bearerToken,
		baseURL:     twitterAPIBase,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTwitterWithBase points the client at an alternate host, used by tests.
func NewTwitterWithBase(bearerToken, baseURL string) *Twitter {
	t := NewTwitter(bearerToken)
	t.baseURL = baseURL
	return t
}

func (t *Twitter) Name() string { return "twitter" }

func composeTweet(text, link string) string {
	if link != "" {
		withLink := text + "\n" + link
		if len(withLink) <= tweetMaxLen {
			return withLink
		}
		// Keep the link intact and trim the text to fit.
		room := tweetMaxLen - len(link) - 4
		if room > 0 {
			return text[:room] + "...\n" + link
		}
	}
	if len(text) > tweetMaxLen {
		return text[:tweetMaxLen-3] + "..."
	}
	return text
}

// Post publishes one tweet and returns its id. Images are not attached;
// the v2 media upload flow needs OAuth 1.0a user context.
func (t *Twitter) Post(ctx context.Context, text, _ /* imageRef */, link string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": composeTweet(text, link)})
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.bearerToken)

	resp, err := t.http.Do(req)
	if err != nil {
		return "", faults.Transientf("tweet post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", faults.FromStatus(resp.StatusCode, fmt.Errorf("tweet post: status %s", resp.Status))
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	return parsed.Data.ID, nil
}
