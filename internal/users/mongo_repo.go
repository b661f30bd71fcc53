package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/simpify/spark-backend/pkg/db/models"
	"github.com/simpify/spark-backend/pkg/enums"
)

const CollectionName = "users"

// MongoRepository is the document-store Store. Purchase history is embedded
// in the user document and appended with $push.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ Store = (*MongoRepository)(nil)

func NewMongoRepository(database *mongo.Database) *MongoRepository {
	return &MongoRepository{
		coll: database.Collection(CollectionName),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique email and sparse unique identity indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "external_identity_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "is_premium", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "purchase_history.external_sale_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	email, err := NormalizeEmail(dto.Email)
	if err != nil {
		return nil, err
	}
	dto.Email = email

	user := dto.ToModel()
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, toDocument(user)); err != nil {
		return nil, mapMongoWriteError(err)
	}
	return user, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"email": normalized})
}

func (r *MongoRepository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"external_identity_id": externalID})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel()
}

func (r *MongoRepository) Save(ctx context.Context, user *models.User) error {
	update, err := r.mutableFields(user)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID.String()}, update)
	if err != nil {
		return mapMongoWriteError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) RecordSale(ctx context.Context, user *models.User, purchase models.Purchase) (bool, error) {
	update, err := r.mutableFields(user)
	if err != nil {
		return false, err
	}
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	purchase.UserID = user.ID
	doc, err := toPurchaseDocument(purchase)
	if err != nil {
		return false, err
	}
	update["$push"] = bson.M{"purchase_history": doc}

	filter := bson.M{"_id": user.ID.String()}
	if purchase.ExternalSaleID != nil {
		filter["purchase_history.external_sale_id"] = bson.M{"$ne": *purchase.ExternalSaleID}
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mapMongoWriteError(err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": user.ID.String()})
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}
	user.Purchases = append(user.Purchases, purchase)
	return true, nil
}

func (r *MongoRepository) ListPremium(ctx context.Context, after uuid.UUID, limit int) ([]models.User, error) {
	filter := bson.M{"is_premium": true}
	if after != uuid.Nil {
		filter["_id"] = bson.M{"$gt": after.String()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"purchase_history": 0})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, nil
}

func (r *MongoRepository) ExpirePremium(ctx context.Context, user *models.User, now time.Time) (bool, error) {
	if user == nil || user.ID == uuid.Nil {
		return false, ErrNotFound
	}
	if !user.Subscription.Expired(now) {
		return false, nil
	}
	filter := bson.M{
		"_id":                   user.ID.String(),
		"is_premium":            true,
		"updated_at":            user.UpdatedAt,
		"subscription.end_date": bson.M{"$lte": now},
	}
	updatedAt := r.now()
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"is_premium": false, "updated_at": updatedAt}})
	if err != nil {
		return false, fmt.Errorf("expire premium: %w", err)
	}
	if res.ModifiedCount == 0 {
		return false, nil
	}
	user.IsPremium = false
	user.UpdatedAt = updatedAt
	return true, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// mutableFields builds the $set/$unset document for Save and RecordSale. A
// missing identity is unset rather than stored as null so the sparse index
// keeps ignoring it.
func (r *MongoRepository) mutableFields(user *models.User) (bson.M, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	email, err := NormalizeEmail(user.Email)
	if err != nil {
		return nil, err
	}
	user.Email = email
	user.UpdatedAt = r.now()

	doc := toDocument(user)
	set := bson.M{
		"email":         doc.Email,
		"username":      doc.Username,
		"first_name":    doc.FirstName,
		"last_name":     doc.LastName,
		"avatar_url":    doc.AvatarURL,
		"provider":      doc.Provider,
		"profile":       doc.Profile,
		"token_balance": doc.TokenBalance,
		"is_premium":    doc.IsPremium,
		"subscription":  doc.Subscription,
		"updated_at":    doc.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if doc.ExternalIdentityID != nil {
		set["external_identity_id"] = *doc.ExternalIdentityID
	} else {
		update["$unset"] = bson.M{"external_identity_id": ""}
	}
	return update, nil
}

func mapMongoWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "external_identity_id") {
		return fmt.Errorf("%w: %v", ErrExternalIDTaken, err)
	}
	return fmt.Errorf("%w: %v", ErrEmailTaken, err)
}

type userDocument struct {
	ID                 string                `bson:"_id"`
	ExternalIdentityID *string               `bson:"external_identity_id,omitempty"`
	Email              string                `bson:"email"`
	Username           string                `bson:"username"`
	FirstName          string                `bson:"first_name"`
	LastName           string                `bson:"last_name"`
	AvatarURL          string                `bson:"avatar_url"`
	Provider           string                `bson:"provider"`
	Profile            profileDocument       `bson:"profile"`
	TokenBalance       int                   `bson:"token_balance"`
	IsPremium          bool                  `bson:"is_premium"`
	Subscription       *subscriptionDocument `bson:"subscription"`
	PurchaseHistory    []purchaseDocument    `bson:"purchase_history"`
	CreatedAt          time.Time             `bson:"created_at"`
	UpdatedAt          time.Time             `bson:"updated_at"`
}

type profileDocument struct {
	Gender             string `bson:"gender,omitempty"`
	Age                *int   `bson:"age,omitempty"`
	Location           string `bson:"location,omitempty"`
	Goal               string `bson:"goal,omitempty"`
	CommunicationStyle string `bson:"communication_style,omitempty"`
}

type subscriptionDocument struct {
	PlanType               string    `bson:"plan_type"`
	Status                 string    `bson:"status"`
	StartDate              time.Time `bson:"start_date"`
	EndDate                time.Time `bson:"end_date"`
	ExternalSubscriptionID string    `bson:"external_subscription_id,omitempty"`
	ExternalProductID      string    `bson:"external_product_id,omitempty"`
}

type purchaseDocument struct {
	ID             string          `bson:"id"`
	Date           time.Time       `bson:"date"`
	Amount         bson.Decimal128 `bson:"amount"`
	PlanType       string          `bson:"plan_type"`
	ExternalSaleID *string         `bson:"external_sale_id,omitempty"`
}

func toDocument(u *models.User) userDocument {
	doc := userDocument{
		ID:                 u.ID.String(),
		ExternalIdentityID: u.ExternalIdentityID,
		Email:              u.Email,
		Username:           u.Username,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		AvatarURL:          u.AvatarURL,
		Provider:           u.Provider,
		Profile: profileDocument{
			Gender:             u.Profile.Gender,
			Age:                u.Profile.Age,
			Location:           u.Profile.Location,
			Goal:               u.Profile.Goal,
			CommunicationStyle: u.Profile.CommunicationStyle,
		},
		TokenBalance:    u.TokenBalance,
		IsPremium:       u.IsPremium,
		PurchaseHistory: []purchaseDocument{},
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if s := u.Subscription; s != nil {
		doc.Subscription = &subscriptionDocument{
			PlanType:               string(s.PlanType),
			Status:                 string(s.Status),
			StartDate:              s.StartDate,
			EndDate:                s.EndDate,
			ExternalSubscriptionID: s.ExternalSubscriptionID,
			ExternalProductID:      s.ExternalProductID,
		}
	}
	return doc
}

func toPurchaseDocument(p models.Purchase) (purchaseDocument, error) {
	amount, err := bson.ParseDecimal128(p.Amount.String())
	if err != nil {
		return purchaseDocument{}, fmt.Errorf("encode purchase amount: %w", err)
	}
	return purchaseDocument{
		ID:             p.ID.String(),
		Date:           p.Date,
		Amount:         amount,
		PlanType:       string(p.PlanType),
		ExternalSaleID: p.ExternalSaleID,
	}, nil
}

func (d userDocument) toModel() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode user id %q: %w", d.ID, err)
	}
	user := &models.User{
		ID:                 id,
		ExternalIdentityID: d.ExternalIdentityID,
		Email:              d.Email,
		Username:           d.Username,
		FirstName:          d.FirstName,
		LastName:           d.LastName,
		AvatarURL:          d.AvatarURL,
		Provider:           d.Provider,
		Profile: models.ProfileAttributes{
			Gender:             d.Profile.Gender,
			Age:                d.Profile.Age,
			Location:           d.Profile.Location,
			Goal:               d.Profile.Goal,
			CommunicationStyle: d.Profile.CommunicationStyle,
		},
		TokenBalance: d.TokenBalance,
		IsPremium:    d.IsPremium,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if s := d.Subscription; s != nil {
		user.Subscription = &models.Subscription{
			PlanType:               enums.PlanType(s.PlanType),
			Status:                 enums.SubscriptionStatus(s.Status),
			StartDate:              s.StartDate,
			EndDate:                s.EndDate,
			ExternalSubscriptionID: s.ExternalSubscriptionID,
			ExternalProductID:      s.ExternalProductID,
		}
	}
	for _, p := range d.PurchaseHistory {
		amount, err := decimal.NewFromString(p.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("decode purchase amount: %w", err)
		}
		purchaseID, _ := uuid.Parse(p.ID)
		user.Purchases = append(user.Purchases, models.Purchase{
			ID:             purchaseID,
			UserID:         id,
			Date:           p.Date,
			Amount:         amount,
			PlanType:       enums.PlanType(p.PlanType),
			ExternalSaleID: p.ExternalSaleID,
		})
	}
	return user, nil
}
