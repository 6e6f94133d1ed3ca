// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCatalog = `databases:
  - name: orders
  - name: billing
    job: billing-exporter
`

func writeCatalog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Database
		wantErr string
	}{
		{
			name:  "names and jobs",
			input: sampleCatalog,
			want:  []Database{{Name: "orders"}, {Name: "billing", Job: "billing-exporter"}},
		},
		{
			name:  "empty document",
			input: "",
			want:  nil,
		},
		{
			name:    "missing name",
			input:   "databases:\n  - job: x\n",
			wantErr: "name required",
		},
		{
			name:    "duplicate",
			input:   "databases:\n  - name: a\n  - name: a\n",
			wantErr: "listed twice",
		},
		{
			name:    "malformed",
			input:   "databases: [",
			wantErr: "failed to parse catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_LookupAndList(t *testing.T) {
	c, err := New(writeCatalog(t, t.TempDir(), sampleCatalog), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []Database{{Name: "orders"}, {Name: "billing", Job: "billing-exporter"}}, c.List())

	db, err := c.Get("billing")
	require.NoError(t, err)
	assert.Equal(t, "billing-exporter", db.Job)

	_, err = c.Get("Orders")
	assert.ErrorIs(t, err, ErrUnknownDatabase, "lookup is exact")
	assert.True(t, c.Contains("orders"))
	assert.False(t, c.Contains("inventory"))

	list := c.List()
	list[0].Name = "mutated"
	assert.Equal(t, "orders", c.List()[0].Name)
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "failed to read catalog")
}

func TestCatalog_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, sampleCatalog)
	c, err := New(path, nil)
	require.NoError(t, err)

	writeCatalog(t, dir, "databases:\n  - job: broken\n")
	assert.Error(t, c.Reload())
	assert.Len(t, c.List(), 2)

	writeCatalog(t, dir, "databases:\n  - name: inventory\n")
	require.NoError(t, c.Reload())
	assert.Equal(t, []Database{{Name: "inventory"}}, c.List())
}

func TestCatalog_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, sampleCatalog)
	c, err := New(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Watch(context.Background(), 20*time.Millisecond))
	defer c.Close()
	require.NoError(t, c.Watch(context.Background(), 0), "second watch is a no-op")

	writeCatalog(t, dir, sampleCatalog+"  - name: inventory\n")

	assert.Eventually(t, func() bool {
		return c.Contains("inventory")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestStaticCatalog(t *testing.T) {
	c := NewStatic([]Database{{Name: "orders"}})
	assert.True(t, c.Contains("orders"))
	assert.NoError(t, c.Reload())
	assert.Error(t, c.Watch(context.Background(), 0))
	assert.Empty(t, c.Path())
}
