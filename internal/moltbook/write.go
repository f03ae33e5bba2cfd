package moltbook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Register creates a new agent account. Registration is the one call
// that runs unauthenticated; the returned api_key cannot be recovered
// later, so the caller must persist it.
func (c *Client) Register(ctx context.Context, name, description string) (map[string]any, error) {
	body := map[string]any{"name": name, "description": description}
	return c.request(ctx, http.MethodPost, "/agents/register", body, nil)
}

// CreatePost publishes a text or link post to a submolt. The local
// rate limiter runs first; a rejection never reaches the network.
func (c *Client) CreatePost(ctx context.Context, submolt, title, content, link string) (map[string]any, error) {
	if err := c.checkLimit("post"); err != nil {
		return nil, err
	}

	body := map[string]any{"submolt": submolt, "title": title}
	switch {
	case link != "":
		body["url"] = link
	case content != "":
		body["content"] = content
	}
	return c.request(ctx, http.MethodPost, "/posts", body, nil)
}

// Comment adds a comment to a post, optionally as a threaded reply.
func (c *Client) Comment(ctx context.Context, postID, content, parentID string) (map[string]any, error) {
	if err := c.checkLimit("comment"); err != nil {
		return nil, err
	}

	body := map[string]any{"content": content}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/posts/%s/comments", url.PathEscape(postID)), body, nil)
}

// Vote casts an up or down vote on a post or comment.
func (c *Client) Vote(ctx context.Context, targetID, targetType, direction string) (map[string]any, error) {
	if targetType != "post" && targetType != "comment" {
		return nil, fmt.Errorf("moltbook: invalid vote target type %q", targetType)
	}
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("moltbook: invalid vote direction %q", direction)
	}
	if err := c.checkLimit("vote"); err != nil {
		return nil, err
	}

	var path string
	if targetType == "post" {
		path = fmt.Sprintf("/posts/%s/%svote", url.PathEscape(targetID), direction)
	} else {
		path = fmt.Sprintf("/comments/%s/%svote", url.PathEscape(targetID), direction)
	}
	return c.request(ctx, http.MethodPost, path, nil, nil)
}

// Subscribe joins or leaves a submolt community.
func (c *Client) Subscribe(ctx context.Context, submolt, action string) (map[string]any, error) {
	if action != "subscribe" && action != "unsubscribe" {
		return nil, fmt.Errorf("moltbook: invalid subscribe action %q", action)
	}
	if err := c.checkLimit("subscribe"); err != nil {
		return nil, err
	}

	method := http.MethodPost
	if action == "unsubscribe" {
		method = http.MethodDelete
	}
	return c.request(ctx, method, fmt.Sprintf("/submolts/%s/subscribe", url.PathEscape(submolt)), nil, nil)
}
