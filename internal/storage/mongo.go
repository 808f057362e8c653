package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account_service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type userDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	models.User `bson:",inline"`
}

func (d userDocument) toUser() models.User {
	user := d.User
	user.ID = d.ID.Hex()
	return user
}

type MongoStorage struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStorage connects, pings and makes sure the unique email index
// exists before returning.
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	const op = "storage.NewMongoStorage"

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := &MongoStorage{
		client: client,
		users:  client.Database(database).Collection(usersTable),
	}

	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_key"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (m *MongoStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	res, err := m.users.InsertOne(ctx, userDocument{User: user})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return models.User{}, fmt.Errorf("%s: unexpected id type %T", op, res.InsertedID)
	}
	user.ID = id.Hex()

	return user, nil
}

func (m *MongoStorage) GetUserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.GetUserByID"

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	user, err := m.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (m *MongoStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	user, err := m.findOne(ctx, bson.M{"email": email})
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (m *MongoStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	cursor, err := m.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toUser())
	}

	return users, nil
}

func (m *MongoStorage) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.update(ctx, "storage.UpdatePassword", id, bson.M{"passwordHash": passwordHash})
}

// UpdateProfile only sets the non-empty fields of upd.
func (m *MongoStorage) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	set := bson.M{}
	if upd.Names != "" {
		set["names"] = upd.Names
	}
	if upd.Surname != "" {
		set["surname"] = upd.Surname
	}
	if upd.Avatar != "" {
		set["avatar"] = upd.Avatar
	}

	return m.update(ctx, "storage.UpdateProfile", id, set)
}

func (m *MongoStorage) UpdateRole(ctx context.Context, id string, role models.Role) error {
	return m.update(ctx, "storage.UpdateRole", id, bson.M{"role": role})
}

func (m *MongoStorage) SoftDelete(ctx context.Context, id string) error {
	return m.update(ctx, "storage.SoftDelete", id, bson.M{"deleted": true})
}

func (m *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = m.client.Disconnect(ctx)
}

func (m *MongoStorage) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument

	err := m.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	return doc.toUser(), nil
}

func (m *MongoStorage) update(ctx context.Context, op, id string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	set["updatedAt"] = time.Now().UTC()

	res, err := m.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}
