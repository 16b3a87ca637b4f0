package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"surveysync/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStorage implements Storage using MongoDB. Attachments go to a GridFS
// bucket and are streamed in chunks.
type MongoDBStorage struct {
	client      *mongo.Client
	db          *mongo.Database
	submissions *mongo.Collection
	metadata    *mongo.Collection
	bucket      *gridfs.Bucket
}

// submissionDocument represents a submission in MongoDB.
type submissionDocument struct {
	ID       string                 `bson:"_id"`
	Fields   map[string]interface{} `bson:"fields"`
	StoredAt time.Time              `bson:"stored_at"`
}

// metadataDocument represents a metadata entry in MongoDB.
type metadataDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoDBStorage connects to MongoDB and prepares the collections and GridFS
// bucket named after namespace.
func NewMongoDBStorage(uri, database, namespace string) (*MongoDBStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(namespace+"_attachments"))
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}

	// Attachment lookups go by filename when replacing earlier uploads
	_, err = db.Collection(namespace+"_attachments.files").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "filename", Value: 1}},
	})
	if err != nil {
		log.Printf("[MongoDB] Warning: failed to create attachment index: %v", err)
	}

	log.Printf("[MongoDB] Connected to %s (namespace %s)", database, namespace)
	return &MongoDBStorage{
		client:      client,
		db:          db,
		submissions: db.Collection(namespace + "_submissions"),
		metadata:    db.Collection(namespace + "_metadata"),
		bucket:      bucket,
	}, nil
}

// StoreSubmission upserts the submission document.
func (s *MongoDBStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	doc, err := bsonFields(fields)
	if err != nil {
		return s.fail("encode submission "+id, err)
	}

	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"fields":    doc,
			"stored_at": time.Now().UTC(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.submissions.UpdateOne(ctx, filter, update, opts); err != nil {
		return s.fail("store submission "+id, err)
	}
	return nil
}

// QuerySubmission checks for the submission document.
func (s *MongoDBStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	count, err := s.submissions.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, s.fail("query submission "+id, err)
	}
	return count > 0, nil
}

// StoreAttachment streams data into GridFS as <submissionID>/<name>, then removes
// any earlier upload under the same name.
func (s *MongoDBStorage) StoreAttachment(ctx context.Context, submissionID, name string, data io.Reader) error {
	filename := submissionID + "/" + name
	uploadOpts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "submission_id", Value: submissionID},
		{Key: "name", Value: name},
	})

	newID, err := s.bucket.UploadFromStream(filename, data, uploadOpts)
	if err != nil {
		return s.fail("store attachment "+filename, err)
	}

	cursor, err := s.bucket.Find(bson.M{"filename": filename, "_id": bson.M{"$ne": newID}})
	if err != nil {
		return s.fail("find previous attachment "+filename, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file struct {
			ID interface{} `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return s.fail("decode previous attachment "+filename, err)
		}
		if err := s.bucket.Delete(file.ID); err != nil {
			return s.fail("delete previous attachment "+filename, err)
		}
	}
	if err := cursor.Err(); err != nil {
		return s.fail("find previous attachment "+filename, err)
	}
	return nil
}

// AttachmentsSupported always returns true.
func (s *MongoDBStorage) AttachmentsSupported() bool { return true }

// GetMetadata reads a metadata document.
func (s *MongoDBStorage) GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error) {
	var doc metadataDocument
	err := s.metadata.FindOne(ctx, bson.M{"_id": string(key)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail("read metadata "+string(key), err)
	}
	return doc.Value, true, nil
}

// StoreMetadata upserts a metadata document.
func (s *MongoDBStorage) StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error {
	filter := bson.M{"_id": string(key)}
	update := bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": time.Now().UTC(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.metadata.UpdateOne(ctx, filter, update, opts); err != nil {
		return s.fail("store metadata "+string(key), err)
	}
	return nil
}

// SetDataTimezone records loc under the data timezone metadata key.
func (s *MongoDBStorage) SetDataTimezone(ctx context.Context, loc *time.Location) error {
	return s.StoreMetadata(ctx, model.MetadataDataTimezone, loc.String())
}

// GetSubmissions reads every submission document, ordered by id.
func (s *MongoDBStorage) GetSubmissions(ctx context.Context) ([]model.StoredSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.submissions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, s.fail("list submissions", err)
	}
	defer cursor.Close(ctx)

	var out []model.StoredSubmission
	for cursor.Next(ctx) {
		var doc submissionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, s.fail("decode submission", err)
		}
		out = append(out, model.StoredSubmission{ID: doc.ID, Fields: fieldsFromBSON(doc.Fields)})
	}
	if err := cursor.Err(); err != nil {
		return nil, s.fail("list submissions", err)
	}
	return out, nil
}

// GetStats returns statistics about the submissions collection.
func (s *MongoDBStorage) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["backend"] = "mongodb"

	count, err := s.submissions.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, s.fail("count submissions", err)
	}
	stats["total_submissions"] = count

	opts := options.FindOne().SetSort(bson.D{{Key: "stored_at", Value: -1}})
	var doc submissionDocument
	if err := s.submissions.FindOne(ctx, bson.M{}, opts).Decode(&doc); err == nil {
		stats["last_stored"] = doc.StoredAt
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (s *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoDBStorage) fail(op string, err error) error {
	return &model.StorageError{Backend: "mongodb", Op: op, Err: err}
}

// bsonFields converts json.Number leaves into BSON numbers: int64 where they
// fit, Decimal128 for larger integers, float64 for the rest.
func bsonFields(fields model.Fields) (map[string]interface{}, error) {
	doc := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		conv, err := bsonValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		doc[k] = conv
	}
	return doc, nil
}

func bsonValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		if !strings.ContainsAny(t.String(), ".eE") {
			if d, err := primitive.ParseDecimal128(t.String()); err == nil {
				return d, nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", t.String())
		}
		return f, nil
	case map[string]interface{}:
		return bsonFields(t)
	case model.Fields:
		return bsonFields(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			conv, err := bsonValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return v, nil
	}
}

// fieldsFromBSON turns Decimal128 values back into exact json.Number.
func fieldsFromBSON(doc map[string]interface{}) model.Fields {
	fields := make(model.Fields, len(doc))
	for k, v := range doc {
		if d, ok := v.(primitive.Decimal128); ok {
			v = json.Number(d.String())
		}
		fields[k] = v
	}
	return fields
}

// Ensure MongoDBStorage implements Storage
var _ Storage = (*MongoDBStorage)(nil)
