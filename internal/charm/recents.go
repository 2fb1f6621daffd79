// ABOUTME: Recent coded values stored in Charm KV for cross-device sync.
// ABOUTME: Lists use the same recent-values keys as the local badger store.
package charm

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/recent"
)

var _ recent.Store = (*Client)(nil)

// Load returns metricID's list, empty when nothing was saved.
func (c *Client) Load(metricID string) ([]recent.CodedValue, error) {
	key := recent.Key(metricID)
	ok, err := c.has(key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	data, err := c.get(key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var values []recent.CodedValue
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return values, nil
}

// Save replaces metricID's list. An empty list removes the key.
func (c *Client) Save(metricID string, values []recent.CodedValue) error {
	key := recent.Key(metricID)
	if len(values) == 0 {
		ok, err := c.has(key)
		if err != nil || !ok {
			return err
		}
		return c.delete(key)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal recent values: %w", err)
	}
	return c.set(key, data)
}

// Metrics lists the metric ids that have recent values, sorted.
func (c *Client) Metrics() ([]string, error) {
	keys, err := c.keys()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, k := range keys {
		if bytes.HasPrefix(k, []byte(recent.KeyPrefix)) {
			out = append(out, strings.TrimPrefix(string(k), recent.KeyPrefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) has(key string) (bool, error) {
	keys, err := c.keys()
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if string(k) == key {
			return true, nil
		}
	}
	return false, nil
}
