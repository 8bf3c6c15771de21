package records

import "time"

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

// BookingStatus tracks a booking from creation to completion.
type BookingStatus string

const (
	BookingPending        BookingStatus = "pending"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingPaymentPending BookingStatus = "payment_pending"
	BookingPendingUPI     BookingStatus = "pending_upi"
	BookingPaid           BookingStatus = "paid"
	BookingCompleted      BookingStatus = "completed"
	BookingCancelled      BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingPaymentPending, BookingPendingUPI,
		BookingPaid, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// User is a patient account.
type User struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Status           UserStatus        `json:"status"`
	PasswordHash     string            `json:"passwordHash,omitempty"`
	RegistrationDate time.Time         `json:"registrationDate"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Test is one orderable lab test. Price is in whole rupees.
type Test struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Popularity  int    `json:"popularity"`
}

// PaymentInfo is attached to a booking once a payment provider confirms it.
type PaymentInfo struct {
	Provider  string     `json:"provider"`
	OrderID   string     `json:"orderId,omitempty"`
	PaymentID string     `json:"paymentId,omitempty"`
	Signature string     `json:"signature,omitempty"`
	VPA       string     `json:"vpa,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

// Booking is one test ordered for one slot. Amount is price × quantity.
type Booking struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	UserName  string            `json:"userName"`
	TestID    string            `json:"testId,omitempty"`
	TestName  string            `json:"testName"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Amount    int64             `json:"amount"`
	Quantity  int               `json:"quantity"`
	Status    BookingStatus     `json:"status"`
	Phone     string            `json:"phone,omitempty"`
	Email     string            `json:"email,omitempty"`
	City      string            `json:"city,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Payment   *PaymentInfo      `json:"payment,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// DateLayout is the calendar format of Booking.Date.
const DateLayout = "2006-01-02"

// ParsedDate returns the booking date as midnight in loc.
func (b Booking) ParsedDate(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, b.Date, loc)
}

func mergeMetadata(dst map[string]string, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if v == "" {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return dst
}

// BookingPatch is the set of booking fields an update may change. Nil fields
// are left alone; metadata keys with empty values are removed.
type BookingPatch struct {
	Status   *BookingStatus    `json:"status,omitempty"`
	Date     *string           `json:"date,omitempty"`
	Time     *string           `json:"time,omitempty"`
	City     *string           `json:"city,omitempty"`
	Provider *string           `json:"provider,omitempty"`
	Payment  *PaymentInfo      `json:"payment,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Apply writes the patch onto b.
func (p BookingPatch) Apply(b *Booking) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Date != nil {
		b.Date = *p.Date
	}
	if p.Time != nil {
		b.Time = *p.Time
	}
	if p.City != nil {
		b.City = *p.City
	}
	if p.Provider != nil {
		b.Provider = *p.Provider
	}
	if p.Payment != nil {
		pay := *p.Payment
		b.Payment = &pay
	}
	b.Metadata = mergeMetadata(b.Metadata, p.Metadata)
}

// UserPatch is the set of user fields an update may change.
type UserPatch struct {
	Name     *string           `json:"name,omitempty"`
	Email    *string           `json:"email,omitempty"`
	Phone    *string           `json:"phone,omitempty"`
	Status   *UserStatus       `json:"status,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Apply writes the patch onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	u.Metadata = mergeMetadata(u.Metadata, p.Metadata)
}

// TestPatch is the set of catalog fields an update may change.
type TestPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *int64  `json:"price,omitempty"`
	Popularity  *int    `json:"popularity,omitempty"`
}

// Apply writes the patch onto t.
func (p TestPatch) Apply(t *Test) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.Popularity != nil {
		t.Popularity = *p.Popularity
	}
}
