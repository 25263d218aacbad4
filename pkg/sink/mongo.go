package sink

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/utils"
)

const (
	defaultMongoPort    = 27017
	defaultMongoTimeout = 10 // seconds
)

var ErrMongoPingFailed = errors.New("mongodb: ping failed")

var _ Sink = (*Mongo)(nil)

// documentReplacer is the slice of *mongo.Collection the sink needs.
type documentReplacer interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{},
		opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// Mongo upserts each attack document into a collection with the attack ID
// as _id.
type Mongo struct {
	coll       documentReplacer
	disconnect func(context.Context) error
}

// NewMongo connects to MongoDB and pings the primary.
func NewMongo(cfg *settings.MongoDB) (*Mongo, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultMongoPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultMongoTimeout
	}
	timeout := utils.ToDuration(cfg.Timeout)

	opts := options.Client().
		ApplyURI(fmt.Sprintf("mongodb://%s:%d", cfg.Host, cfg.Port)).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(time.Duration(cfg.MaxConnIdleTime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrMongoPingFailed, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return newMongoSink(coll, client.Disconnect), nil
}

func newMongoSink(coll documentReplacer, disconnect func(context.Context) error) *Mongo {
	return &Mongo{coll: coll, disconnect: disconnect}
}

func (m *Mongo) Name() string { return "mongodb" }

// Write stores the JSON document of a, keyed by a.ID.
func (m *Mongo) Write(ctx context.Context, a *record.Attack) error {
	doc, err := attackBSON(a)
	if err != nil {
		return err
	}

	_, err = m.coll.ReplaceOne(ctx, bson.M{"_id": a.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "failed to upsert attack %d", a.ID)
	}
	return nil
}

// attackBSON converts the attack's JSON document to BSON, so both stores
// hold the same field names.
func attackBSON(a *record.Attack) (bson.D, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert attack to JSON")
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to convert attack to BSON")
	}
	return append(bson.D{{Key: "_id", Value: a.ID}}, doc...), nil
}

func (m *Mongo) Close() error {
	if m.disconnect == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.disconnect(ctx)
}
