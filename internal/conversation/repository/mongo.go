package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/ids"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// MongoRepo stores conversations and messages in two collections. Messages
// carry the owning conversation's _id in conversationId.
type MongoRepo struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

var _ Repository = (*MongoRepo)(nil)

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
	}
}

// EnsureIndexes creates the indexes the queries below rely on. Safe to call
// on every start.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = m.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
	})
	return err
}

func (m *MongoRepo) CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	if c.ID == 0 {
		c.ID = ids.Next()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := m.conversations.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.ErrConflict
		}
		return nil, err
	}
	out := *c
	return &out, nil
}

func (m *MongoRepo) FindConversationByID(ctx context.Context, id int64) (*models.Conversation, error) {
	var c models.Conversation
	err := m.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m *MongoRepo) ListConversationsByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	return m.findConversations(ctx, bson.M{"userId": userID})
}

func (m *MongoRepo) SearchConversations(ctx context.Context, userID int64, term string) ([]*models.Conversation, error) {
	filter := bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}}
	if userID != AllUsers {
		filter["userId"] = userID
	}
	return m.findConversations(ctx, filter)
}

func (m *MongoRepo) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	return m.findConversations(ctx, bson.M{})
}

func (m *MongoRepo) findConversations(ctx context.Context, filter bson.M) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.Conversation{}
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

// DeleteConversation removes the conversation first so a failure part way
// through never leaves a conversation with a partial transcript.
func (m *MongoRepo) DeleteConversation(ctx context.Context, id int64) error {
	res, err := m.conversations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	_, err = m.messages.DeleteMany(ctx, bson.M{"conversationId": id})
	return err
}

func (m *MongoRepo) SaveMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.ID == 0 {
		msg.ID = ids.Next()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := m.messages.InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	out := *msg
	return &out, nil
}

func (m *MongoRepo) FindMessagesByConversation(ctx context.Context, conversationID int64, ascending bool) ([]*models.Message, error) {
	dir := 1
	if !ascending {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}})
	return m.findMessages(ctx, bson.M{"conversationId": conversationID}, opts)
}

func (m *MongoRepo) ListMessages(ctx context.Context) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return m.findMessages(ctx, bson.M{}, opts)
}

func (m *MongoRepo) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Message, error) {
	cur, err := m.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.Message{}
	for cur.Next(ctx) {
		var msg models.Message
		if err := cur.Decode(&msg); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, cur.Err()
}
