package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// MaxReportSize caps an uploaded report.
const MaxReportSize = 10 << 20

// MetadataKey is the booking metadata entry holding the report object key.
const MetadataKey = "reportKey"

var (
	ErrDisabled  = errors.New("reports: storage not configured")
	ErrForbidden = errors.New("reports: booking belongs to another user")
	ErrNoReport  = errors.New("reports: no report uploaded")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Upload is a report file as received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Report is an object being streamed back to the client.
type Report struct {
	Key         string
	ContentType string
	Body        io.ReadCloser
}

// Store keeps lab reports in S3 and links them to bookings.
type Store struct {
	bucket  string
	s3      S3API
	records *records.Store
	logger  *logging.Logger
	now     func() time.Time
}

// NewStore creates a report store. With an empty bucket every call returns
// ErrDisabled.
func NewStore(client S3API, bucket string, store *records.Store, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3: client, records: store, logger: logger, now: time.Now}
}

// Enabled reports whether a bucket is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3 != nil
}

// ObjectKey is the S3 key a report for bookingID is stored under.
func ObjectKey(bookingID, filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(filename, "\\", "/")), "_")
	if name == "" || name == "." || name == ".." || name == "_" {
		name = "report"
	}
	return "reports/" + bookingID + "/" + name
}

// Attach uploads the report and records its key on the booking. An empty
// userID skips the ownership check.
func (s *Store) Attach(ctx context.Context, bookingID, userID string, up Upload) (records.Booking, error) {
	if !s.Enabled() {
		return records.Booking{}, ErrDisabled
	}
	booking, err := s.records.Bookings.Get(ctx, bookingID)
	if err != nil {
		return records.Booking{}, err
	}
	if userID != "" && booking.UserID != userID {
		return records.Booking{}, ErrForbidden
	}

	key := ObjectKey(bookingID, up.Filename)
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        up.Body,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"booking-id": bookingID},
	}
	if up.Size > 0 {
		input.ContentLength = aws.Int64(up.Size)
	}
	if _, err := s.s3.PutObject(ctx, input); err != nil {
		return records.Booking{}, fmt.Errorf("reports: s3 put %s: %w", key, err)
	}

	uploadedAt := s.now().UTC().Format(time.RFC3339)
	updated, err := s.records.Bookings.Update(ctx, bookingID, func(b *records.Booking) error {
		records.BookingPatch{Metadata: map[string]string{
			MetadataKey:      key,
			"reportUploaded": uploadedAt,
		}}.Apply(b)
		return nil
	})
	if err != nil {
		return records.Booking{}, fmt.Errorf("reports: link %s: %w", bookingID, err)
	}
	s.logger.Info("lab report uploaded", "booking_id", bookingID, "s3_key", key, "size", up.Size)
	return updated, nil
}

// Open streams the report linked to bookingID. The caller closes Body.
func (s *Store) Open(ctx context.Context, bookingID, userID string) (Report, error) {
	if !s.Enabled() {
		return Report{}, ErrDisabled
	}
	booking, err := s.records.Bookings.Get(ctx, bookingID)
	if err != nil {
		return Report{}, err
	}
	if userID != "" && booking.UserID != userID {
		return Report{}, ErrForbidden
	}
	key := booking.Metadata[MetadataKey]
	if key == "" {
		return Report{}, ErrNoReport
	}
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Report{}, fmt.Errorf("reports: s3 get %s: %w", key, err)
	}
	return Report{Key: key, ContentType: aws.ToString(out.ContentType), Body: out.Body}, nil
}
