package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hotel_scraper/internal/domain"
)

type recordDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	DedupKey  string             `bson:"dedup_key"`
	HotelName *string            `bson:"hotel_name"`
	SourceURL string             `bson:"source_url,omitempty"`
	Data      bson.M             `bson:"data"`
	Version   int64              `bson:"version"`
	Timestamp time.Time          `bson:"timestamp"`
	RunID     string             `bson:"run_id,omitempty"`
}

// read side keeps data undecoded; it goes out as JSON as-is
type recordRaw struct {
	DedupKey  string    `bson:"dedup_key"`
	HotelName *string   `bson:"hotel_name"`
	SourceURL string    `bson:"source_url"`
	Data      bson.Raw  `bson:"data"`
	Version   int64     `bson:"version"`
	Timestamp time.Time `bson:"timestamp"`
	RunID     string    `bson:"run_id"`
}

// Connect opens and pings a client. The caller owns Disconnect.
func Connect(ctx context.Context, uri string) (*driver.Client, error) {
	cl, err := driver.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(15*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cl.Ping(ctx, nil); err != nil {
		_ = cl.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return cl, nil
}

// Store is one source collection. It has no atomic append: callers serialize
// count-then-insert per key and the unique index rejects what slips through.
type Store struct {
	coll *driver.Collection
}

// New ensures the (dedup_key, version) unique index exists.
func New(ctx context.Context, db *driver.Database, collection string) (*Store, error) {
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys:    bson.D{{Key: "dedup_key", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("dedup_key_version_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("create index on %s: %w", collection, err)
	}
	return &Store{coll: coll}, nil
}

func (s *Store) CountVersions(ctx context.Context, key string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"dedup_key": key})
}

func (s *Store) Insert(ctx context.Context, rec *domain.HotelRecord) error {
	data := make(bson.M, len(rec.Data))
	for k, sec := range rec.Data {
		data[k] = sec.Value()
	}
	res, err := s.coll.InsertOne(ctx, recordDoc{
		DedupKey:  rec.DedupKey,
		HotelName: rec.HotelName,
		SourceURL: rec.SourceURL,
		Data:      data,
		Version:   rec.Version,
		Timestamp: rec.Timestamp.UTC(),
		RunID:     rec.RunID,
	})
	if driver.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s v%d", domain.ErrDuplicateVersion, rec.DedupKey, rec.Version)
	}
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

func (s *Store) Latest(ctx context.Context, key string) (domain.RecordView, error) {
	var doc recordRaw
	err := s.coll.FindOne(ctx, bson.M{"dedup_key": key},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&doc)
	if errors.Is(err, driver.ErrNoDocuments) {
		return domain.RecordView{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RecordView{}, err
	}
	return toView(doc)
}

func (s *Store) ListVersions(ctx context.Context, key string, limit int) (domain.RecordsPage, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := s.coll.Find(ctx, bson.M{"dedup_key": key},
		options.Find().SetSort(bson.D{{Key: "version", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return domain.RecordsPage{}, err
	}
	defer cur.Close(ctx)

	out := domain.RecordsPage{Items: []domain.RecordView{}}
	for cur.Next(ctx) {
		var doc recordRaw
		if err := cur.Decode(&doc); err != nil {
			return domain.RecordsPage{}, err
		}
		rv, err := toView(doc)
		if err != nil {
			return domain.RecordsPage{}, err
		}
		out.Items = append(out.Items, rv)
	}
	return out, cur.Err()
}

func toView(d recordRaw) (domain.RecordView, error) {
	data := []byte("{}")
	if len(d.Data) > 0 {
		b, err := bson.MarshalExtJSON(d.Data, false, false)
		if err != nil {
			return domain.RecordView{}, fmt.Errorf("encode data: %w", err)
		}
		data = b
	}
	return domain.RecordView{
		DedupKey:  d.DedupKey,
		HotelName: d.HotelName,
		SourceURL: d.SourceURL,
		Data:      data,
		Version:   d.Version,
		Timestamp: d.Timestamp.UTC(),
		RunID:     d.RunID,
	}, nil
}
