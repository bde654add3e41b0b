package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection    = "users"
	contactsCollection = "contacts"
	messagesCollection = "messages"
)

// Documents keep ids as strings so the collections stay readable from the shell.

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	PublicKey string    `bson:"public_key"`
	CreatedAt time.Time `bson:"created_at"`
}

type contactDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"user_id"`
	ContactID string    `bson:"contact_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type messageDoc struct {
	ID         string    `bson:"_id"`
	SenderID   string    `bson:"sender_id"`
	ReceiverID string    `bson:"receiver_id"`
	Content    string    `bson:"content"`
	IPFSHash   *string   `bson:"ipfs_hash"`
	Timestamp  time.Time `bson:"timestamp"`
	IsRead     bool      `bson:"is_read"`
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating users index: %w", err)
	}

	_, err = db.Collection(contactsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "contact_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating contacts index: %w", err)
	}

	_, err = db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating messages indexes: %w", err)
	}
	return nil
}

// NewGateway wires the document-store repositories. Closing the gateway
// disconnects the client.
func NewGateway(client *mongo.Client, db *mongo.Database) *repository.Gateway {
	return repository.NewGateway(
		&UserRepo{coll: db.Collection(usersCollection)},
		&ContactRepo{coll: db.Collection(contactsCollection)},
		&MessageRepo{coll: db.Collection(messagesCollection), users: db.Collection(usersCollection)},
		client.Disconnect,
	)
}

type UserRepo struct {
	coll *mongo.Collection
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	_, err := r.coll.InsertOne(ctx, userDoc{
		ID:        user.ID.String(),
		Username:  user.Username,
		PublicKey: user.PublicKey,
		CreatedAt: user.CreatedAt,
	})
	return translate(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("decoding user id %q: %w", doc.ID, err)
	}
	return &domain.User{
		ID:        id,
		Username:  doc.Username,
		PublicKey: doc.PublicKey,
		CreatedAt: doc.CreatedAt,
	}, nil
}

type ContactRepo struct {
	coll *mongo.Collection
}

// CreatePair has no transaction to lean on, so a failed reverse insert
// deletes the forward edge it just wrote.
func (r *ContactRepo) CreatePair(ctx context.Context, forward, reverse *domain.Contact) error {
	if _, err := r.coll.InsertOne(ctx, toContactDoc(forward)); err != nil {
		return translate(err)
	}

	if _, err := r.coll.InsertOne(ctx, toContactDoc(reverse)); err != nil {
		if _, delErr := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: forward.ID.String()}}); delErr != nil {
			return fmt.Errorf("compensating forward contact %s after %v: %w", forward.ID, err, delErr)
		}
		return translate(err)
	}
	return nil
}

func (r *ContactRepo) Get(ctx context.Context, ownerID, contactID uuid.UUID) (*domain.Contact, error) {
	var doc contactDoc
	err := r.coll.FindOne(ctx, bson.D{
		{Key: "user_id", Value: ownerID.String()},
		{Key: "contact_id", Value: contactID.String()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromContactDoc(doc)
}

func (r *ContactRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	cursor, err := r.coll.Find(ctx,
		bson.D{{Key: "user_id", Value: ownerID.String()}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}

	var docs []contactDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	contacts := make([]domain.Contact, 0, len(docs))
	for _, doc := range docs {
		c, err := fromContactDoc(doc)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, nil
}

func toContactDoc(c *domain.Contact) contactDoc {
	return contactDoc{
		ID:        c.ID.String(),
		OwnerID:   c.OwnerID.String(),
		ContactID: c.ContactID.String(),
		CreatedAt: c.CreatedAt,
	}
}

func fromContactDoc(doc contactDoc) (*domain.Contact, error) {
	ids, err := parseIDs(doc.ID, doc.OwnerID, doc.ContactID)
	if err != nil {
		return nil, fmt.Errorf("decoding contact %q: %w", doc.ID, err)
	}
	return &domain.Contact{
		ID:        ids[0],
		OwnerID:   ids[1],
		ContactID: ids[2],
		CreatedAt: doc.CreatedAt,
	}, nil
}

type MessageRepo struct {
	coll  *mongo.Collection
	users *mongo.Collection
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, messageDoc{
		ID:         msg.ID.String(),
		SenderID:   msg.SenderID.String(),
		ReceiverID: msg.ReceiverID.String(),
		Content:    msg.Content,
		IPFSHash:   msg.IPFSHash,
		Timestamp:  msg.Timestamp,
		IsRead:     msg.Read,
	})
	return translate(err)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var doc messageDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, err := r.hydrate(ctx, []messageDoc{doc})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

func (r *MessageRepo) ListConversation(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	cursor, err := r.coll.Find(ctx, conversation(a, b),
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return r.hydrate(ctx, docs)
}

func (r *MessageRepo) LastInConversation(ctx context.Context, a, b uuid.UUID) (*domain.Message, error) {
	var doc messageDoc
	err := r.coll.FindOne(ctx, conversation(a, b),
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, err := r.hydrate(ctx, []messageDoc{doc})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: true}}}},
	)
	return err
}

func (r *MessageRepo) MarkManyRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	strIDs := make(bson.A, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	res, err := r.coll.UpdateMany(ctx,
		bson.D{
			{Key: "_id", Value: bson.D{{Key: "$in", Value: strIDs}}},
			{Key: "receiver_id", Value: receiverID.String()},
			{Key: "is_read", Value: false},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: true}}}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// hydrate converts documents and joins sender usernames with one lookup
// per distinct sender.
func (r *MessageRepo) hydrate(ctx context.Context, docs []messageDoc) ([]domain.Message, error) {
	usernames := make(map[string]string)
	msgs := make([]domain.Message, 0, len(docs))

	for _, doc := range docs {
		ids, err := parseIDs(doc.ID, doc.SenderID, doc.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("decoding message %q: %w", doc.ID, err)
		}

		name, seen := usernames[doc.SenderID]
		if !seen {
			var u userDoc
			err := r.users.FindOne(ctx, bson.D{{Key: "_id", Value: doc.SenderID}}).Decode(&u)
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, err
			}
			name = u.Username
			usernames[doc.SenderID] = name
		}

		msgs = append(msgs, domain.Message{
			ID:             ids[0],
			SenderID:       ids[1],
			ReceiverID:     ids[2],
			Content:        doc.Content,
			IPFSHash:       doc.IPFSHash,
			Timestamp:      doc.Timestamp,
			Read:           doc.IsRead,
			SenderUsername: name,
		})
	}
	return msgs, nil
}

func conversation(a, b uuid.UUID) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "sender_id", Value: a.String()}, {Key: "receiver_id", Value: b.String()}},
		bson.D{{Key: "sender_id", Value: b.String()}, {Key: "receiver_id", Value: a.String()}},
	}}}
}

func parseIDs(raw ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func translate(err error) error {
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}
