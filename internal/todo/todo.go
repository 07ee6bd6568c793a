// Package todo fetches a plain-text todo list, one item per line.
package todo

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"homedash/internal/fault"
	"homedash/internal/fetch"
	"homedash/internal/model"
)

// BodyLimit is the largest accepted response.
const BodyLimit = 1 << 10

var errInvalidUTF8 = errors.New("body is not valid UTF-8")

// Decode splits body into items. Carriage returns are trimmed and blank
// lines skipped.
func Decode(body []byte) ([]model.Todo, error) {
	if !utf8.Valid(body) {
		return nil, fault.Decode("todo: decode", errInvalidUTF8)
	}

	var items []model.Todo
	for line := range bytes.SplitSeq(body, []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		items = append(items, model.Todo(line))
	}
	return items, nil
}

// Latest returns at most n items from the top of the list.
func Latest(items []model.Todo, n int) []model.Todo {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Getter is the subset of fetch.Client the todo client needs.
type Getter interface {
	ReadLimited(ctx context.Context, url string, hdr fetch.Header, limit int) ([]byte, error)
}

// Client fetches the list with a fixed Authorization header.
type Client struct {
	Getter        Getter
	URL           string
	Authorization string
}

// Fetch downloads and decodes the list.
func (c *Client) Fetch(ctx context.Context) ([]model.Todo, error) {
	body, err := c.Getter.ReadLimited(ctx, c.URL, fetch.Header{Authorization: c.Authorization}, BodyLimit)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}
