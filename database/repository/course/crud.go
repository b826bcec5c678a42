package courseRepo

import (
	"context"
	"time"

	"learnify/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// GetByIDs fetches the courses with the given IDs.
func (r *mongoCourseRepo) GetByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	cursor, err := r.courses.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var courses []models.Course
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// AccrueRevenue adds settled revenue to a course.
func (r *mongoCourseRepo) AccrueRevenue(ctx context.Context, courseID string, amount float64) error {
	update := bson.M{
		"$inc": bson.M{"revenue": amount},
		"$set": bson.M{"updated_at": time.Now()},
	}
	res, err := r.courses.UpdateOne(ctx, bson.M{"id": courseID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEnrollment grants a buyer access to a course.
func (r *mongoCourseRepo) CreateEnrollment(ctx context.Context, enrollment models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.New().String()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now()
	}
	_, err := r.enrollments.InsertOne(ctx, enrollment)
	return err
}

// HasEnrollment reports whether the buyer is already enrolled in the course.
func (r *mongoCourseRepo) HasEnrollment(ctx context.Context, buyerID, courseID string) (bool, error) {
	filter := bson.M{"buyer_id": buyerID, "course_id": courseID}
	count, err := r.enrollments.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
