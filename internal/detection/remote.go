package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
)

const defaultRemoteTimeout = 30 * time.Second

// Remote forwards images to an HTTP detection endpoint that accepts a multipart
// "file" field and answers with the detected bills.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a Remote source posting to endpoint.
func NewRemote(endpoint string, timeout time.Duration) (*Remote, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("detection endpoint is required")
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type remoteResponse struct {
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	BillsDetected map[string]int   `json:"bills_detected"`
	Message       string           `json:"message"`
	Error         string           `json:"error"`
}

// Name implements Source.
func (r *Remote) Name() string {
	return "remote"
}

// Detect implements Source.
func (r *Remote) Detect(ctx context.Context, img Image) (Result, error) {
	if err := Validate(img); err != nil {
		return Result{}, err
	}

	body, contentType, err := encodeUpload(img)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: calling %s: %w", ErrRemoteDetection, r.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading response: %v", ErrRemoteDetection, err)
	}

	var payload remoteResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(payload.Error)
		if decodeErr != nil || detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return Result{}, fmt.Errorf("%w (status %d): %s", ErrRemoteDetection, resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("%w: decoding response: %v", ErrRemoteDetection, decodeErr)
	}

	return payload.result()
}

func (p remoteResponse) result() (Result, error) {
	bills, err := AggregateCounts(p.BillsDetected)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Amount:  Total(bills),
		Bills:   bills,
		Message: p.Message,
	}
	if p.TotalAmount != nil {
		amount, err := dispenser.AmountFromDecimal(*p.TotalAmount)
		if err != nil {
			return Result{}, err
		}
		res.Amount = amount
	}
	if res.Amount == 0 && res.Message == "" {
		res.Message = NoBillsMessage
	}
	return res, nil
}

// Close implements Source.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func encodeUpload(img Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="upload"`)
	header.Set("Content-Type", DetectContentType(img))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("writing image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
