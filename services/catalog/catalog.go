package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	courseRepo "learnify/database/repository/course"
	"learnify/models"

	"github.com/go-redis/redis/v8"
)

// ErrUnknownItem is returned when a requested item does not exist or is not
// purchasable.
var ErrUnknownItem = errors.New("unknown catalog item")

// PricedCart is the authoritative server-side pricing of a purchase.
type PricedCart struct {
	Items    []models.OrderLineItem
	Subtotal float64
	Tax      float64
	Discount float64
}

// Total returns the amount the buyer is charged.
func (c PricedCart) Total() float64 {
	return round2(c.Subtotal + c.Tax - c.Discount)
}

// Service prices catalog items at intent-creation time. It is the only view
// of the course catalog the settlement core has.
type Service interface {
	PriceItems(ctx context.Context, itemIDs []string) (*PricedCart, error)
}

const courseCacheTTL = 10 * time.Minute

// DefaultCatalogService implements Service over the course repository.
// CacheClient is optional; when set, course documents are cached to keep
// intent creation off the database for hot courses.
type DefaultCatalogService struct {
	Repo        courseRepo.CourseRepository
	CacheClient *redis.Client
}

// PriceItems resolves each item to a published course and computes the
// cart's commercial terms from the course's price, tax rate, and discount.
func (s *DefaultCatalogService) PriceItems(ctx context.Context, itemIDs []string) (*PricedCart, error) {
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: empty item list", ErrUnknownItem)
	}

	byID, missing := s.cachedCourses(ctx, itemIDs)
	if len(missing) > 0 {
		courses, err := s.Repo.GetByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup failed: %w", err)
		}
		for _, course := range courses {
			byID[course.ID] = course
			s.cacheCourse(ctx, course)
		}
	}

	cart := &PricedCart{}
	for _, id := range itemIDs {
		course, ok := byID[id]
		if !ok || !course.Published {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		cart.Items = append(cart.Items, models.OrderLineItem{
			CourseID:  course.ID,
			Title:     course.Title,
			UnitPrice: course.Price,
			Quantity:  1,
		})
		cart.Subtotal += course.Price
		cart.Tax += course.Price * course.TaxRate
		cart.Discount += course.Discount
	}
	cart.Subtotal = round2(cart.Subtotal)
	cart.Tax = round2(cart.Tax)
	cart.Discount = round2(cart.Discount)
	return cart, nil
}

// cachedCourses returns the cached subset of the requested courses and the
// IDs that still need a database lookup. Cache failures degrade to a miss.
func (s *DefaultCatalogService) cachedCourses(ctx context.Context, itemIDs []string) (map[string]models.Course, []string) {
	byID := make(map[string]models.Course, len(itemIDs))
	if s.CacheClient == nil {
		return byID, itemIDs
	}
	var missing []string
	for _, id := range itemIDs {
		data, err := s.CacheClient.Get(ctx, courseCacheKey(id)).Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}
		var course models.Course
		if err := json.Unmarshal(data, &course); err != nil {
			missing = append(missing, id)
			continue
		}
		byID[id] = course
	}
	return byID, missing
}

func (s *DefaultCatalogService) cacheCourse(ctx context.Context, course models.Course) {
	if s.CacheClient == nil {
		return
	}
	data, err := json.Marshal(course)
	if err != nil {
		return
	}
	s.CacheClient.Set(ctx, courseCacheKey(course.ID), data, courseCacheTTL)
}

func courseCacheKey(id string) string {
	return "course:" + id
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
