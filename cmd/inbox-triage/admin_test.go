package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/store"
	"github.com/mikey/inbox-triage/internal/buckets"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

const bucketFile = `
buckets:
  - slug: invoices
    name: Invoices
    priority: 1
    matchers:
      keywords: [invoice, receipt]
      exclude_sender_domains: [mailchimp.com]
    actions:
      llm_classify: true
      llm_summarize: true
      push: true
      push_min_confidence: 0.8
  - id: muted
    slug: newsletters
    enabled: false
    priority: 9
    matchers:
      sender_domains: [substack.com]
    actions:
      ignore: true
`

// sharedStore hands the same memory store to every command run
func sharedStore(s ports.Store) storeOpener {
	return func(fn func(ctx context.Context, store ports.Store) error) error {
		return fn(context.Background(), s)
	}
}

func runAdmin(t *testing.T, s ports.Store, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "inbox-triage", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(newUserCmd(sharedStore(s)), newBucketsCmd(sharedStore(s)))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBucketsImportExportRoundTrip(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop(), store.Options{})
	defer s.Close()

	_, err := runAdmin(t, s, "user", "add", "--id", "u1", "--email", "u1@example.com", "--no-default-buckets")
	require.NoError(t, err)
	_, err = runAdmin(t, s, "buckets", "import", "--user", "u1", "--file", writeFile(t, "buckets.yaml", bucketFile))
	require.NoError(t, err)

	exported, err := runAdmin(t, s, "buckets", "export", "--user", "u1")
	require.NoError(t, err)

	raw, err := buckets.Load(strings.NewReader(exported))
	require.NoError(t, err)
	decoded, errs := core.DecodeBuckets(raw)
	require.Empty(t, errs)
	require.Len(t, decoded, 2)

	bySlug := make(map[string]core.Bucket)
	for _, b := range decoded {
		bySlug[b.Slug] = b
	}

	invoices := bySlug["invoices"]
	assert.Equal(t, "invoices", invoices.ID)
	assert.Equal(t, "Invoices", invoices.Name)
	assert.True(t, invoices.Enabled)
	assert.Equal(t, []string{"invoice", "receipt"}, invoices.Matchers.Keywords)
	assert.Equal(t, []string{"mailchimp.com"}, invoices.Matchers.ExcludeSenderDomains)
	assert.True(t, invoices.Actions.Classify)
	assert.True(t, invoices.Actions.Push)
	require.NotNil(t, invoices.Actions.PushMinConfidence)
	assert.Equal(t, 0.8, *invoices.Actions.PushMinConfidence)

	muted := bySlug["newsletters"]
	assert.Equal(t, "muted", muted.ID)
	assert.False(t, muted.Enabled)
	assert.True(t, muted.Actions.Ignore)
	assert.Equal(t, []string{"substack.com"}, muted.Matchers.SenderDomains)

	// the exported file imports into another account unchanged
	_, err = runAdmin(t, s, "user", "add", "--id", "u2", "--email", "u2@example.com", "--no-default-buckets")
	require.NoError(t, err)
	_, err = runAdmin(t, s, "buckets", "import", "--user", "u2", "--file", writeFile(t, "export.yaml", exported))
	require.NoError(t, err)
	again, err := runAdmin(t, s, "buckets", "export", "--user", "u2")
	require.NoError(t, err)
	assert.Equal(t, exported, again)
}

func TestBucketsImportRejectsInvalidFile(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop(), store.Options{})
	defer s.Close()

	_, err := runAdmin(t, s, "user", "add", "--id", "u1", "--email", "u1@example.com", "--no-default-buckets")
	require.NoError(t, err)

	bad := "buckets:\n  - slug: broken\n    actions:\n      push_min_confidence: 1.5\n"
	_, err = runAdmin(t, s, "buckets", "import", "--user", "u1", "--file", writeFile(t, "bad.yaml", bad))
	require.Error(t, err)

	stored, err := s.ListBuckets(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBucketsImportUnknownUser(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop(), store.Options{})
	defer s.Close()

	_, err := runAdmin(t, s, "buckets", "import", "--user", "ghost", "--file", writeFile(t, "buckets.yaml", bucketFile))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUserAddSeedsDefaultBuckets(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop(), store.Options{})
	defer s.Close()

	_, err := runAdmin(t, s, "user", "add", "--id", "u1", "--email", "u1@example.com")
	require.NoError(t, err)

	stored, err := s.ListBuckets(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, stored, len(buckets.Defaults()))

	user, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, user.Active)
}
