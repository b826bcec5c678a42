package models

import "time"

// Course is the purchasable catalog item. Only the fields the settlement
// core needs; content and curriculum live elsewhere.
type Course struct {
	ID        string    `bson:"id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Price     float64   `bson:"price" json:"price"`
	TaxRate   float64   `bson:"tax_rate" json:"taxRate"`
	Discount  float64   `bson:"discount" json:"discount"`
	Published bool      `bson:"published" json:"published"`
	Revenue   float64   `bson:"revenue" json:"revenue"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Enrollment grants a buyer access to a course after settlement.
type Enrollment struct {
	ID          string    `bson:"id" json:"id"`
	BuyerID     string    `bson:"buyer_id" json:"buyerId"`
	CourseID    string    `bson:"course_id" json:"courseId"`
	OrderNumber string    `bson:"order_number" json:"orderNumber"`
	EnrolledAt  time.Time `bson:"enrolled_at" json:"enrolledAt"`
}
