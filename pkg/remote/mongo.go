package remote

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

// MongoStore implements Store directly against MongoDB for self-hosted
// deployments that skip the HTTP API. One collection per kind; documents
// carry the wire record shape with "id" as the natural key.
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
}

// NewMongoStore wraps a connected database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, timeout: DefaultTimeout}
}

func (s *MongoStore) collection(kind Kind) *mongo.Collection {
	return s.db.Collection(string(kind))
}

// FetchProject implements [Store].
func (s *MongoStore) FetchProject(ctx context.Context, projectID string) (*document.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw bson.M
	err := s.collection(KindProject).FindOne(ctx, bson.M{"id": projectID}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "project %s not found", projectID)
	}
	if err != nil {
		return nil, wrapMongoErr(ctx, err, "fetch project")
	}
	out, err := decodeOne[document.Project](raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLayers implements [Store].
func (s *MongoStore) FetchLayers(ctx context.Context, projectID string) ([]*document.Layer, error) {
	return fetchMany[document.Layer](ctx, s, KindLayer, bson.M{"project_id": projectID})
}

// FetchTemplates implements [Store].
func (s *MongoStore) FetchTemplates(ctx context.Context, projectID string) ([]*document.Template, error) {
	return fetchMany[document.Template](ctx, s, KindTemplate, bson.M{"project_id": projectID})
}

// FetchElements implements [Store].
func (s *MongoStore) FetchElements(ctx context.Context, templateID string) ([]*document.Element, error) {
	return fetchMany[document.Element](ctx, s, KindElement, bson.M{"template_id": templateID})
}

// FetchAnimations implements [Store].
func (s *MongoStore) FetchAnimations(ctx context.Context, templateID string) ([]*document.Animation, error) {
	return fetchMany[document.Animation](ctx, s, KindAnimation, bson.M{"template_id": templateID})
}

// FetchKeyframes implements [Store].
func (s *MongoStore) FetchKeyframes(ctx context.Context, templateID string) ([]*document.Keyframe, error) {
	return fetchMany[document.Keyframe](ctx, s, KindKeyframe, bson.M{"template_id": templateID})
}

// FetchBindings implements [Store].
func (s *MongoStore) FetchBindings(ctx context.Context, templateID string) ([]*document.Binding, error) {
	return fetchMany[document.Binding](ctx, s, KindBinding, bson.M{"template_id": templateID})
}

// BatchUpsert implements [Store]. Records are written with ReplaceOne
// upserts keyed on "id", so retrying a partially applied batch is safe.
func (s *MongoStore) BatchUpsert(ctx context.Context, kind Kind, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		id, _ := rec["id"].(string)
		if id == "" {
			return errors.New(errors.ErrCodeValidation, "%s record without id in upsert batch", kind)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"id": id}).
			SetReplacement(bson.M(rec)).
			SetUpsert(true))
	}

	_, err := s.collection(kind).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return wrapMongoErr(ctx, err, "bulk upsert "+string(kind))
	}
	return nil
}

// BatchDelete implements [Store]. Absent ids are ignored.
func (s *MongoStore) BatchDelete(ctx context.Context, kind Kind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection(kind).DeleteMany(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return wrapMongoErr(ctx, err, "bulk delete "+string(kind))
	}
	return nil
}

func fetchMany[T any](ctx context.Context, s *MongoStore, kind Kind, filter bson.M) ([]*T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.collection(kind).Find(ctx, filter)
	if err != nil {
		return nil, wrapMongoErr(ctx, err, "fetch "+string(kind))
	}
	defer cur.Close(ctx)

	var out []*T
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		v, err := decodeOne[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

// decodeOne converts a BSON document into a typed entity through the
// canonical JSON wire shape, so custom JSON unmarshalers (the element
// content union) apply uniformly across stores.
func decodeOne[T any](raw bson.M) (*T, error) {
	delete(raw, "_id")
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

func wrapMongoErr(ctx context.Context, err error, op string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(errors.ErrCodeTimeout, err, "%s exceeded budget", op)
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, "%s failed", op)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
