package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoAuditDoc struct {
	ID          string    `bson:"_id"`
	Action      string    `bson:"action"`
	PerformedBy *string   `bson:"performed_by,omitempty"`
	Details     string    `bson:"details,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

type mongoAuditLogRepo struct {
	collection *mongo.Collection
}

// NewMongoAuditLogRepository stores audit entries in the "audit_logs"
// collection of db.
func NewMongoAuditLogRepository(db *mongo.Database) AuditLogRepository {
	return &mongoAuditLogRepo{collection: db.Collection("audit_logs")}
}

func (r *mongoAuditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	doc := mongoAuditDoc{
		ID:        entry.ID.String(),
		Action:    string(entry.Action),
		CreatedAt: entry.CreatedAt,
	}
	if entry.PerformedBy != nil {
		s := entry.PerformedBy.String()
		doc.PerformedBy = &s
	}
	if entry.Details != nil {
		doc.Details = string(*entry.Details)
	}
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

func (r *mongoAuditLogRepo) List(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.AuditLog
	for cur.Next(ctx) {
		var doc mongoAuditDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		e, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

func (d mongoAuditDoc) toModel() (*models.AuditLog, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	e := &models.AuditLog{
		ID:        id,
		Action:    models.AuditAction(d.Action),
		CreatedAt: d.CreatedAt,
	}
	if d.PerformedBy != nil {
		by, err := uuid.Parse(*d.PerformedBy)
		if err != nil {
			return nil, err
		}
		e.PerformedBy = &by
	}
	if d.Details != "" {
		raw := json.RawMessage(d.Details)
		e.Details = &raw
	}
	return e, nil
}
