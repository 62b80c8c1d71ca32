package feed

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"discord-chat/internal/models"
)

// HTTPFetcher reads history pages from the chat server.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher builds a fetcher for the server at baseURL authenticating
// with the bearer token.
func NewHTTPFetcher(baseURL, token string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &HTTPFetcher{client: client}
}

// FetchPage implements Fetcher. Failures are never retried here.
func (f *HTTPFetcher) FetchPage(ctx context.Context, chat models.ChatRef, cursor *Cursor) (PageResult, error) {
	path, param := historyEndpoint(chat.Kind)

	var page models.MessagePage
	var apiErr struct {
		Error string `json:"error"`
	}
	req := f.client.R().
		SetContext(ctx).
		SetQueryParam(param, strconv.FormatInt(chat.ID, 10)).
		SetResult(&page).
		SetError(&apiErr)
	if cursor != nil && *cursor != "" {
		req.SetQueryParam("cursor", string(*cursor))
	}

	resp, err := req.Get(path)
	if err != nil {
		return PageResult{}, &TransientFetchError{Err: err}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound:
		return PageResult{}, &AuthError{StatusCode: code, Message: apiErr.Error}
	case code >= 300:
		return PageResult{}, &TransientFetchError{StatusCode: code}
	}

	res := PageResult{Messages: page.Items}
	if page.NextCursor != nil && *page.NextCursor != "" {
		next := Cursor(*page.NextCursor)
		res.NextCursor = &next
	}
	return res, nil
}

func historyEndpoint(kind models.ChatKind) (string, string) {
	if kind == models.ChatKindConversation {
		return "/api/direct-messages", "conversationId"
	}
	return "/api/messages", "channelId"
}
