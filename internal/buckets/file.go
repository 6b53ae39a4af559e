package buckets

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mikey/inbox-triage/internal/core"
)

// fileBucket is one entry of a bucket file. Matchers and actions stay loosely
// typed so a file goes through the same validation as stored buckets.
type fileBucket struct {
	ID          string         `yaml:"id"`
	Slug        string         `yaml:"slug"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Priority    int            `yaml:"priority"`
	Enabled     *bool          `yaml:"enabled"`
	Matchers    map[string]any `yaml:"matchers"`
	Actions     map[string]any `yaml:"actions"`
}

type file struct {
	Buckets []fileBucket `yaml:"buckets"`
}

// LoadFile reads a YAML bucket file
func LoadFile(path string) ([]core.RawBucket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes a YAML bucket document. Buckets without an id use their slug,
// and buckets are enabled unless the file says otherwise.
func Load(r io.Reader) ([]core.RawBucket, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse bucket file: %w", err)
	}

	raw := make([]core.RawBucket, 0, len(doc.Buckets))
	for i, b := range doc.Buckets {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			id = strings.TrimSpace(b.Slug)
		}
		if id == "" {
			return nil, fmt.Errorf("bucket %d has neither id nor slug", i)
		}

		matchers, err := json.Marshal(b.Matchers)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: failed to encode matchers: %w", id, err)
		}
		actions, err := json.Marshal(b.Actions)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: failed to encode actions: %w", id, err)
		}

		enabled := true
		if b.Enabled != nil {
			enabled = *b.Enabled
		}

		raw = append(raw, core.RawBucket{
			ID:          id,
			Slug:        b.Slug,
			Name:        b.Name,
			Description: b.Description,
			Priority:    b.Priority,
			Enabled:     enabled,
			Matchers:    matchers,
			Actions:     actions,
		})
	}

	return raw, nil
}

// Write encodes buckets as a YAML bucket file
func Write(w io.Writer, buckets []core.Bucket) error {
	doc := struct {
		Buckets []yamlBucket `yaml:"buckets"`
	}{}
	for _, b := range buckets {
		id := b.ID
		if id == "" {
			id = b.Slug
		}
		doc.Buckets = append(doc.Buckets, yamlBucket{
			ID:          id,
			Slug:        b.Slug,
			Name:        b.Name,
			Description: b.Description,
			Priority:    b.Priority,
			Enabled:     b.Enabled,
			Matchers:    b.Matchers,
			Actions:     b.Actions,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode buckets: %w", err)
	}
	return enc.Close()
}

type yamlBucket struct {
	ID          string        `yaml:"id"`
	Slug        string        `yaml:"slug"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Priority    int           `yaml:"priority"`
	Enabled     bool          `yaml:"enabled"`
	Matchers    core.Matchers `yaml:"matchers"`
	Actions     core.Actions  `yaml:"actions"`
}
