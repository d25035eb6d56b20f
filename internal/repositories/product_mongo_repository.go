package repositories

import (
	"context"
	"errors"
	"regexp"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoProductRepository stores products as documents keyed by their string id.
type MongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(collection *mongo.Collection) *MongoProductRepository {
	return &MongoProductRepository{
		collection: collection,
	}
}

func liveFilter() bson.M {
	return bson.M{"is_deleted": bson.M{"$ne": true}}
}

func (r *MongoProductRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, op string) ([]models.Product, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	defer cursor.Close(ctx)

	var records []models.ProductRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, models.NewStorageError(op, err)
	}
	products := make([]models.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, models.ProductFromRecord(rec))
	}
	return products, nil
}

func (r *MongoProductRepository) FindAll(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, liveFilter(), opts, "find all products")
}

// FindByID returns the document whether or not it is soft-deleted.
func (r *MongoProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rec models.ProductRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("product", id)
		}
		return nil, models.NewStorageError("find product "+id, err)
	}
	p := models.ProductFromRecord(rec)
	return &p, nil
}

func (r *MongoProductRepository) FindByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := liveFilter()
	filter["category_id"] = categoryID
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, filter, opts, "find products by category")
}

func (r *MongoProductRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := liveFilter()
	filter["category_id"] = categoryID
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, models.NewStorageError("count products by category", err)
	}
	return int(count), nil
}

// Filter translates the predicates into one query document. The search term
// is matched literally and case-sensitively.
func (r *MongoProductRepository) Filter(ctx context.Context, filter models.ProductFilter) (*models.FilterResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := liveFilter()
	if filter.SearchTerm != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.SearchTerm)}
	}
	if filter.CategoryID != "" {
		query["category_id"] = filter.CategoryID
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	if filter.Cursor != "" {
		query["_id"] = bson.M{"$gt": filter.Cursor}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit + 1))
	}

	products, err := r.find(ctx, query, opts, "filter products")
	if err != nil {
		return nil, err
	}
	return pageByID(products, "", filter.Limit), nil
}

func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}
	if _, err := r.collection.InsertOne(ctx, product.ToRecord()); err != nil {
		return models.NewStorageError("create product", err)
	}
	return nil
}

// Update sets the supplied fields and unsets cleared optional references.
func (r *MongoProductRepository) Update(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	unset := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Quantity != nil {
		set["quantity"] = *update.Quantity
	}
	optional := map[string]*string{"category_id": update.CategoryID, "image_url": update.ImageURL}
	for field, value := range optional {
		switch {
		case value == nil:
		case *value == "":
			unset[field] = ""
		default:
			set[field] = *value
		}
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}

	var rec models.ProductRecord
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, doc, opts).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("product", id)
		}
		return nil, models.NewStorageError("update product "+id, err)
	}
	p := models.ProductFromRecord(rec)
	return &p, nil
}

func (r *MongoProductRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"is_deleted": true,
			"updated_at": time.Now(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return models.NewStorageError("soft delete product "+id, err)
	}
	if result.MatchedCount == 0 {
		return notFound("product", id)
	}
	return nil
}

func (r *MongoProductRepository) HardDelete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.NewStorageError("delete product "+id, err)
	}
	if result.DeletedCount == 0 {
		return notFound("product", id)
	}
	return nil
}
