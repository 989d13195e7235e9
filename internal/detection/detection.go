package detection

import (
	"context"
	"errors"
)

// NoBillsMessage is reported when a source finds nothing to count.
const NoBillsMessage = "No paper bills detected"

var (
	// ErrEmptyImage is returned when the uploaded image has no content.
	ErrEmptyImage = errors.New("image is empty")
	// ErrUnsupportedImage is returned for content types other than JPEG, PNG or HEIC/HEIF.
	ErrUnsupportedImage = errors.New("unsupported image format, use JPEG, PNG or HEIC")
	// ErrUnknownDenomination is returned when a detected label does not name a known bill.
	ErrUnknownDenomination = errors.New("unknown bill denomination")
	// ErrRemoteDetection is returned when a detection backend answers with a failure.
	ErrRemoteDetection = errors.New("detection backend failed")
)

// Image is an uploaded picture of one or more bills.
type Image struct {
	Data        []byte
	ContentType string
}

// Result describes what a Source found in an image.
// Amount is the total value of all detected bills.
type Result struct {
	Amount  int
	Bills   map[int]int
	Message string
}

// Source turns an image into a detected amount.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Detect inspects the image and reports the detected bills.
	Detect(ctx context.Context, img Image) (Result, error)
	// Close releases resources held by the source.
	Close() error
}

// resultFromBills builds a Result from aggregated bills.
func resultFromBills(bills map[int]int) Result {
	if len(bills) == 0 {
		return Result{Bills: map[int]int{}, Message: NoBillsMessage}
	}
	return Result{
		Amount: Total(bills),
		Bills:  bills,
	}
}
