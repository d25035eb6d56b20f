package repositories

import (
	"context"
	"errors"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoCategoryRepository struct {
	collection *mongo.Collection
}

func NewMongoCategoryRepository(collection *mongo.Collection) *MongoCategoryRepository {
	return &MongoCategoryRepository{
		collection: collection,
	}
}

func (r *MongoCategoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, models.NewStorageError("find all categories", err)
	}
	defer cursor.Close(ctx)

	var records []models.CategoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, models.NewStorageError("find all categories", err)
	}
	categories := make([]models.Category, 0, len(records))
	for _, rec := range records {
		categories = append(categories, models.CategoryFromRecord(rec))
	}
	return categories, nil
}

func (r *MongoCategoryRepository) findOne(ctx context.Context, filter bson.M, key string) (*models.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rec models.CategoryRecord
	if err := r.collection.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("category", key)
		}
		return nil, models.NewStorageError("find category "+key, err)
	}
	c := models.CategoryFromRecord(rec)
	return &c, nil
}

func (r *MongoCategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *MongoCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	return r.findOne(ctx, bson.M{"name": name}, name)
}

func (r *MongoCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, category.ToRecord()); err != nil {
		return writeError("create category", err)
	}
	return nil
}

func (r *MongoCategoryRepository) Update(ctx context.Context, id string, update models.CategoryUpdate) (*models.Category, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec models.CategoryRecord
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("category", id)
		}
		return nil, writeError("update category "+id, err)
	}
	c := models.CategoryFromRecord(rec)
	return &c, nil
}

func (r *MongoCategoryRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.NewStorageError("delete category "+id, err)
	}
	if result.DeletedCount == 0 {
		return notFound("category", id)
	}
	return nil
}
