package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Storage struct {
	client    *mongo.Client
	database  *mongo.Database
	users     *mongo.Collection
	addresses *mongo.Collection
	counters  *mongo.Collection
}

type userDoc struct {
	ID           int64     `bson:"_id"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	Number       string    `bson:"number"`
	PasswordSalt string    `bson:"password_salt"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

type addressDoc struct {
	ID          int64  `bson:"_id"`
	UserID      int64  `bson:"user_id"`
	Street      string `bson:"street"`
	HouseNumber string `bson:"house_number"`
	Apartment   string `bson:"apartment"`
	City        string `bson:"city"`
	Country     string `bson:"country"`
}

type counterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:    client,
		database:  db,
		users:     db.Collection("users"),
		addresses: db.Collection("user_addresses"),
		counters:  db.Collection("counters"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.number index: %w", err)
	}

	_, err = s.addresses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("user_addresses.user_id index: %w", err)
	}

	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// nextID atomically increments and returns the next ID for a given collection.
func (s *Storage) nextID(ctx context.Context, collectionName string) (int64, error) {
	filter := bson.D{{Key: "_id", Value: collectionName}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter counterDoc
	err := s.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// SaveUser saves a new user and returns the generated user ID.
func (s *Storage) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.mongodb.SaveUser"

	id, err := s.nextID(ctx, "users")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := userDoc{
		ID:           id,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Number:       user.Number,
		PasswordSalt: user.PasswordSalt,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// UserByNumber retrieves a user by phone number.
func (s *Storage) UserByNumber(ctx context.Context, number string) (*models.User, error) {
	const op = "storage.mongodb.UserByNumber"

	user, err := s.findUser(ctx, bson.D{{Key: "number", Value: number}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID retrieves a user by ID.
func (s *Storage) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.mongodb.UserByID"

	user, err := s.findUser(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	return &models.User{
		ID:           doc.ID,
		FirstName:    doc.FirstName,
		LastName:     doc.LastName,
		Number:       doc.Number,
		PasswordSalt: doc.PasswordSalt,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.mongodb.UpdateUser"

	return s.updateUser(ctx, op, user.ID, bson.D{
		{Key: "first_name", Value: user.FirstName},
		{Key: "last_name", Value: user.LastName},
		{Key: "number", Value: user.Number},
	})
}

func (s *Storage) UpdatePassword(ctx context.Context, id int64, salt, hash string) error {
	const op = "storage.mongodb.UpdatePassword"

	return s.updateUser(ctx, op, id, bson.D{
		{Key: "password_salt", Value: salt},
		{Key: "password_hash", Value: hash},
	})
}

func (s *Storage) updateUser(ctx context.Context, op string, id int64, set bson.D) error {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

// DeleteUser removes the user and then their addresses. The two deletes are
// not atomic; an interrupted call leaves orphaned addresses that no user can see.
func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.mongodb.DeleteUser"

	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	if _, err := s.addresses.DeleteMany(ctx, bson.D{{Key: "user_id", Value: id}}); err != nil {
		return fmt.Errorf("%s: addresses: %w", op, err)
	}

	return nil
}

func (s *Storage) SaveAddress(ctx context.Context, addr models.Address) (int64, error) {
	const op = "storage.mongodb.SaveAddress"

	if _, err := s.findUser(ctx, bson.D{{Key: "_id", Value: addr.UserID}}); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.nextID(ctx, "user_addresses")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	addr.ID = id
	if _, err := s.addresses.InsertOne(ctx, toAddressDoc(addr)); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) Addresses(ctx context.Context, userID int64) ([]models.Address, error) {
	const op = "storage.mongodb.Addresses"

	cur, err := s.addresses.Find(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []addressDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	addrs := make([]models.Address, 0, len(docs))
	for _, d := range docs {
		addrs = append(addrs, fromAddressDoc(d))
	}

	return addrs, nil
}

func (s *Storage) Address(ctx context.Context, userID, id int64) (*models.Address, error) {
	const op = "storage.mongodb.Address"

	var doc addressDoc
	err := s.addresses.FindOne(ctx, addressFilter(userID, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAddressNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := fromAddressDoc(doc)
	return &a, nil
}

func (s *Storage) UpdateAddress(ctx context.Context, addr models.Address) error {
	const op = "storage.mongodb.UpdateAddress"

	res, err := s.addresses.UpdateOne(ctx,
		addressFilter(addr.UserID, addr.ID),
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "street", Value: addr.Street},
			{Key: "house_number", Value: addr.HouseNumber},
			{Key: "apartment", Value: addr.Apartment},
			{Key: "city", Value: addr.City},
			{Key: "country", Value: addr.Country},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAddressNotFound)
	}

	return nil
}

func (s *Storage) DeleteAddress(ctx context.Context, userID, id int64) error {
	const op = "storage.mongodb.DeleteAddress"

	res, err := s.addresses.DeleteOne(ctx, addressFilter(userID, id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAddressNotFound)
	}

	return nil
}

func addressFilter(userID, id int64) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}}
}

func toAddressDoc(a models.Address) addressDoc {
	return addressDoc{
		ID:          a.ID,
		UserID:      a.UserID,
		Street:      a.Street,
		HouseNumber: a.HouseNumber,
		Apartment:   a.Apartment,
		City:        a.City,
		Country:     a.Country,
	}
}

func fromAddressDoc(d addressDoc) models.Address {
	return models.Address{
		ID:          d.ID,
		UserID:      d.UserID,
		Street:      d.Street,
		HouseNumber: d.HouseNumber,
		Apartment:   d.Apartment,
		City:        d.City,
		Country:     d.Country,
	}
}
