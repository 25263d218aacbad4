package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
)

const (
	elasticsearchImage = "elastic/elasticsearch:8.18.8"
	elasticsearchPort  = "9200/tcp"
	startupTimeout     = 60 * time.Second
)

// =============================================================================
// Test Helpers
// =============================================================================

type capturedRequest struct {
	method string
	path   string
	query  string
	body   []byte
}

// fakeTransport answers every request with a fixed status.
type fakeTransport struct {
	mu     sync.Mutex
	status int
	err    error
	reqs   []capturedRequest
}

func (f *fakeTransport) Perform(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.reqs = append(f.reqs, capturedRequest{
		method: req.Method,
		path:   req.URL.Path,
		query:  req.URL.RawQuery,
		body:   body,
	})

	return &http.Response{
		StatusCode: f.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{}`)),
	}, nil
}

// =============================================================================
// Unit Tests
// =============================================================================

func TestElasticsearch_Write(t *testing.T) {
	tr := &fakeTransport{status: http.StatusCreated}
	es := newElasticsearchSink(tr, "attacks", false)
	assert.Equal(t, "elasticsearch", es.Name())

	require.NoError(t, es.Write(context.Background(), testAttack(42)))
	require.Len(t, tr.reqs, 1)

	req := tr.reqs[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/attacks/_doc/42", req.path, "document is keyed by attack id")
	assert.NotContains(t, req.query, "refresh")

	var a record.Attack
	require.NoError(t, json.Unmarshal(req.body, &a))
	assert.Equal(t, int64(42), a.ID)
	require.NoError(t, es.Close())
}

func TestElasticsearch_Refresh(t *testing.T) {
	tr := &fakeTransport{status: http.StatusOK}
	es := newElasticsearchSink(tr, "attacks", true)

	require.NoError(t, es.Write(context.Background(), testAttack(1)))
	require.Len(t, tr.reqs, 1)
	assert.Contains(t, tr.reqs[0].query, "refresh=true")
}

func TestElasticsearch_WriteErrors(t *testing.T) {
	tests := []struct {
		name    string
		tr      *fakeTransport
		attack  *record.Attack
		wantErr error
	}{
		{"status", &fakeTransport{status: http.StatusServiceUnavailable}, testAttack(1), ErrIndexRequestFailed},
		{"transport", &fakeTransport{err: errors.New("connection refused")}, testAttack(1), ErrIndexRequestFailed},
		{"conversion", &fakeTransport{status: http.StatusCreated}, badAttack(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := newElasticsearchSink(tt.tr, "attacks", false)
			err := es.Write(context.Background(), tt.attack)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestElasticsearch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	if !isDockerRunning(ctx) {
		t.Skip("Docker is not running, skipping integration test")
	}

	endpoint, terminate := setupElasticsearchContainer(ctx, t)
	defer terminate()

	cfg := &settings.Elasticsearch{
		Addresses: []string{fmt.Sprintf("http://%s", endpoint)},
		Index:     "attackq-test",
		Refresh:   true,
	}
	es, err := NewElasticsearch(cfg)
	require.NoError(t, err)
	defer es.Close()

	// The second write of id 1 is a retry and must not add a document.
	for _, id := range []int64{1, 2, 1} {
		require.NoError(t, es.Write(ctx, testAttack(id)))
	}

	reader, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	require.NoError(t, err)

	res, err := reader.Get("attackq-test", "2")
	require.NoError(t, err)
	defer res.Body.Close()
	require.False(t, res.IsError(), res.Status())

	var got struct {
		Source record.Attack `json:"_source"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, int64(2), got.Source.ID)
	assert.Equal(t, record.ProtocolTCP, got.Source.AttackConn.Protocol)

	count, err := reader.Count(reader.Count.WithIndex("attackq-test"))
	require.NoError(t, err)
	defer count.Body.Close()

	var total struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(count.Body).Decode(&total))
	assert.Equal(t, 2, total.Count)
}

func setupElasticsearchContainer(ctx context.Context, t *testing.T) (string, func()) {
	req := testcontainers.ContainerRequest{
		Image: elasticsearchImage,
		Env: map[string]string{
			"discovery.type":         "single-node",
			"xpack.security.enabled": "false",
		},
		ExposedPorts: []string{elasticsearchPort},
		WaitingFor:   wait.ForHTTP("/_cluster/health").WithPort(elasticsearchPort).WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start elasticsearch container: %v", err)
	}

	endpoint, err := container.PortEndpoint(ctx, elasticsearchPort, "")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get container endpoint: %v", err)
	}

	terminate := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}

	return endpoint, terminate
}
