package courseRepo

import (
	"context"
	"errors"

	"learnify/database"
	"learnify/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a course lookup matches nothing.
var ErrNotFound = errors.New("course not found")

// CourseRepository covers the catalog lookups and enrollment writes the
// settlement core needs. Course content management lives elsewhere.
type CourseRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.Course, error)
	AccrueRevenue(ctx context.Context, courseID string, amount float64) error
	CreateEnrollment(ctx context.Context, enrollment models.Enrollment) error
	HasEnrollment(ctx context.Context, buyerID, courseID string) (bool, error)
}

type mongoCourseRepo struct {
	courses     *mongo.Collection
	enrollments *mongo.Collection
}

// NewMongoCourseRepo returns a new CourseRepository instance using MongoDB.
func NewMongoCourseRepo() CourseRepository {
	return &mongoCourseRepo{
		courses:     database.DB().Collection("courses"),
		enrollments: database.DB().Collection("enrollments"),
	}
}
