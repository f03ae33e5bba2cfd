package moltbook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/harun/moltguard/pkg/filter"
)

// FeedOptions control feed browsing.
type FeedOptions struct {
	Sort    string // hot, new, top, rising
	Limit   int
	Submolt string
}

// AgentStatus returns the agent's claim and profile state.
func (c *Client) AgentStatus(ctx context.Context) (map[string]any, error) {
	status, err := c.request(ctx, http.MethodGet, "/agents/status", nil, nil)
	if err != nil {
		return nil, err
	}
	me, err := c.request(ctx, http.MethodGet, "/agents/me", nil, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": status, "profile": me}, nil
}

// BrowseFeed fetches the post feed. Every post is run through the
// content filter and the internal security metadata is stripped before
// the result crosses back to the caller.
func (c *Client) BrowseFeed(ctx context.Context, opts FeedOptions) (map[string]any, error) {
	query := url.Values{}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Submolt != "" {
		query.Set("submolt", opts.Submolt)
	}

	data, err := c.request(ctx, http.MethodGet, "/posts", nil, query)
	if err != nil {
		return nil, err
	}
	filtered := c.filter.FilterItems(ctx, data)
	return filter.StripSecurityMetadata(filtered).(map[string]any), nil
}

// GetPost fetches one post with its comment thread, both filtered.
func (c *Client) GetPost(ctx context.Context, postID, commentSort string) (map[string]any, error) {
	post, err := c.request(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID), nil, nil)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if commentSort != "" {
		query.Set("sort", commentSort)
	}
	comments, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/posts/%s/comments", url.PathEscape(postID)), nil, query)
	if err != nil {
		return nil, err
	}

	// The post endpoint returns a single item, sometimes wrapped as
	// {"post": {...}}. FilterItems only walks list envelopes, so the
	// singleton must go through the item filter directly.
	if inner, ok := post["post"].(map[string]any); ok {
		post["post"] = c.filter.FilterItem(ctx, inner)
	} else {
		post = c.filter.FilterItem(ctx, post)
	}

	result := map[string]any{
		"post":     post,
		"comments": c.filter.FilterItems(ctx, comments),
	}
	return filter.StripSecurityMetadata(result).(map[string]any), nil
}

// ListSubmolts lists the submolt communities. Submolt descriptions are
// agent-authored text, so the response is filtered too.
func (c *Client) ListSubmolts(ctx context.Context) (map[string]any, error) {
	data, err := c.request(ctx, http.MethodGet, "/submolts", nil, nil)
	if err != nil {
		return nil, err
	}
	filtered := c.filter.FilterItems(ctx, data)
	return filter.StripSecurityMetadata(filtered).(map[string]any), nil
}

// GetSubmolt fetches one submolt's details.
func (c *Client) GetSubmolt(ctx context.Context, name string) (map[string]any, error) {
	data, err := c.request(ctx, http.MethodGet, "/submolts/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return nil, err
	}
	filtered := c.filter.FilterItem(ctx, data)
	return filter.StripSecurityMetadata(filtered).(map[string]any), nil
}
