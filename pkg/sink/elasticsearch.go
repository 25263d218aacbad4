package sink

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
)

var (
	ErrInfoFailed         = errors.New("elasticsearch: info request failed")
	ErrIndexRequestFailed = errors.New("elasticsearch: index request failed")
)

var _ Sink = (*Elasticsearch)(nil)

// Elasticsearch indexes each attack document under its attack ID, so a
// retried delivery overwrites instead of duplicating.
type Elasticsearch struct {
	client  esapi.Transport
	index   string
	refresh string
}

// NewElasticsearch builds a client for cfg.Addresses and checks the cluster
// answers.
func NewElasticsearch(cfg *settings.Elasticsearch) (*Elasticsearch, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create elasticsearch client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfoFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrInfoFailed, res.Status())
	}

	return newElasticsearchSink(client, cfg.Index, cfg.Refresh), nil
}

func newElasticsearchSink(client esapi.Transport, index string, refresh bool) *Elasticsearch {
	es := &Elasticsearch{client: client, index: index}
	if refresh {
		es.refresh = "true"
	}
	return es
}

func (e *Elasticsearch) Name() string { return "elasticsearch" }

// Write indexes a as document <index>/_doc/<id>.
func (e *Elasticsearch) Write(ctx context.Context, a *record.Attack) error {
	body, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to convert attack to JSON")
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: strconv.FormatInt(a.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    e.refresh,
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexRequestFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexRequestFailed, res.Status())
	}
	return nil
}

// Close is a no-op; the client holds only idle HTTP connections.
func (e *Elasticsearch) Close() error { return nil }
