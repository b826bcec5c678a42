package enrollment

import (
	"context"
	"time"

	courseRepo "learnify/database/repository/course"
	"learnify/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service grants course access after settlement.
type Service interface {
	GrantForOrder(ctx context.Context, payload OrderCompletedPayload) error
}

// DefaultEnrollmentService implements Service over the course repository.
type DefaultEnrollmentService struct {
	Courses courseRepo.CourseRepository
	Logger  *zap.Logger
}

// GrantForOrder enrolls the buyer in every purchased course and accrues the
// paid amount to each course's revenue. Grants are idempotent per
// (buyer, course): a redelivered task skips courses already granted,
// including their revenue accrual, so retries never double-count.
func (s *DefaultEnrollmentService) GrantForOrder(ctx context.Context, payload OrderCompletedPayload) error {
	for _, item := range payload.Items {
		exists, err := s.Courses.HasEnrollment(ctx, payload.BuyerID, item.CourseID)
		if err != nil {
			return err
		}
		if exists {
			s.Logger.Debug("buyer already enrolled, skipping grant",
				zap.String("buyer", payload.BuyerID),
				zap.String("course", item.CourseID),
				zap.String("order", payload.OrderNumber))
			continue
		}

		err = s.Courses.CreateEnrollment(ctx, models.Enrollment{
			ID:          uuid.New().String(),
			BuyerID:     payload.BuyerID,
			CourseID:    item.CourseID,
			OrderNumber: payload.OrderNumber,
			EnrolledAt:  time.Now(),
		})
		if err != nil {
			return err
		}

		accrued := item.UnitPrice * float64(item.Quantity)
		if err := s.Courses.AccrueRevenue(ctx, item.CourseID, accrued); err != nil {
			s.Logger.Error("revenue accrual failed after enrollment grant",
				zap.String("course", item.CourseID),
				zap.String("order", payload.OrderNumber),
				zap.Error(err))
		}

		s.Logger.Info("enrollment granted",
			zap.String("buyer", payload.BuyerID),
			zap.String("course", item.CourseID),
			zap.String("order", payload.OrderNumber))
	}
	return nil
}
