// Package mongostore stores users and notices as MongoDB documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/storage"
)

const (
	usersCollection   = "users"
	noticesCollection = "notices"
)

type Store struct {
	client  *mongo.Client
	users   *mongo.Collection
	notices *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

type userDocument struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Password   string             `bson:"password"`
	Phone      string             `bson:"phone"`
	Department string             `bson:"department"`
	CreatedAt  time.Time          `bson:"created_at"`
}

type noticeDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	User      primitive.ObjectID `bson:"user"`
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	Category  string             `bson:"category"`
	Date      *time.Time         `bson:"date,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Open connects to uri, selects database and creates the unique email index.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:  client,
		users:   db.Collection(usersCollection),
		notices: db.Collection(noticesCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}

	_, err = s.notices.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "category", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create notices owner index: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	doc := userDocument{
		ID:         primitive.NewObjectID(),
		Name:       user.Name,
		Email:      user.Email,
		Password:   user.PasswordHash,
		Phone:      user.Phone,
		Department: user.Department,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrEmailTaken
		}
		return err
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *Store) CreateNotice(ctx context.Context, notice *models.Notice) error {
	owner, err := primitive.ObjectIDFromHex(notice.UserID)
	if err != nil {
		return fmt.Errorf("owner id: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := noticeDocument{
		ID:        primitive.NewObjectID(),
		User:      owner,
		Title:     notice.Title,
		Body:      notice.Body,
		Category:  notice.Category,
		Date:      notice.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.notices.InsertOne(ctx, doc); err != nil {
		return err
	}

	notice.ID = doc.ID.Hex()
	notice.CreatedAt = now
	notice.UpdatedAt = now
	return nil
}

func (s *Store) ListNotices(ctx context.Context, userID, category string) ([]models.Notice, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []models.Notice{}, nil
	}

	filter := bson.M{"user": owner}
	if category != "" {
		filter["category"] = category
	}

	cur, err := s.notices.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []noticeDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	notices := make([]models.Notice, 0, len(docs))
	if len(docs) == 0 {
		return notices, nil
	}

	summary, err := s.userSummary(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		n := doc.toModel()
		n.Owner = summary
		notices = append(notices, n)
	}
	return notices, nil
}

func (s *Store) UpdateNotice(ctx context.Context, id, userID string, patch models.NoticePatch) (*models.Notice, error) {
	filter, ok := ownedNoticeFilter(id, userID)
	if !ok {
		return nil, nil
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Body != nil {
		set["body"] = *patch.Body
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Date != nil {
		set["date"] = *patch.Date
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc noticeDocument
	if err := s.notices.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	n := doc.toModel()
	return &n, nil
}

func (s *Store) DeleteNotice(ctx context.Context, id, userID string) (*models.Notice, error) {
	filter, ok := ownedNoticeFilter(id, userID)
	if !ok {
		return nil, nil
	}

	var doc noticeDocument
	if err := s.notices.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	n := doc.toModel()
	return &n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) userSummary(ctx context.Context, id primitive.ObjectID) (*models.UserSummary, error) {
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "email": 1})
	var doc userDocument
	if err := s.users.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &models.UserSummary{ID: doc.ID.Hex(), Name: doc.Name, Email: doc.Email}, nil
}

// ownedNoticeFilter matches one notice by id and owner. ok is false when
// either id is not a valid ObjectID, in which case nothing can match.
func ownedNoticeFilter(id, userID string) (bson.M, bool) {
	noticeID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": noticeID, "user": owner}, true
}

func (d userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Phone:        d.Phone,
		Department:   d.Department,
		CreatedAt:    d.CreatedAt,
	}
}

func (d noticeDocument) toModel() models.Notice {
	return models.Notice{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Title:     d.Title,
		Body:      d.Body,
		Category:  d.Category,
		Date:      d.Date,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
