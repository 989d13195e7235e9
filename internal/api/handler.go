package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eugenenazirov/coin-dispenser/internal/detection"
	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
	"github.com/eugenenazirov/coin-dispenser/internal/metrics"
	"github.com/eugenenazirov/coin-dispenser/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultMaxUploadBytes = 10 << 20
	defaultCurrencySymbol = "₱"
)

// Handler wires the dispenser, storage and detection dependencies into HTTP handlers.
type Handler struct {
	dispenser dispenser.Dispenser
	storage   storage.Storage
	detector  detection.Source
	metrics   *metrics.Metrics
	logger    *zap.Logger

	clock          clock.Clock
	currencySymbol string
	maxUploadBytes int64

	mu                     sync.RWMutex
	denominationsUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(c clock.Clock) HandlerOption {
	return func(h *Handler) {
		h.clock = c
	}
}

// WithDetector sets the bill detection source used by the detect endpoint.
func WithDetector(source detection.Source) HandlerOption {
	return func(h *Handler) {
		h.detector = source
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger sets the logger used for handler-level diagnostics.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCurrencySymbol sets the prefix used in rendered breakdown lines.
func WithCurrencySymbol(symbol string) HandlerOption {
	return func(h *Handler) {
		h.currencySymbol = symbol
	}
}

// WithMaxUploadBytes caps the size of uploaded images.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
// Without WithDetector, detection is simulated.
func NewHandler(disp dispenser.Dispenser, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		dispenser:      disp,
		storage:        store,
		logger:         zap.NewNop(),
		clock:          clock.New(),
		currencySymbol: defaultCurrencySymbol,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.detector == nil {
		h.detector = detection.NewSimulated()
	}
	h.denominationsUpdatedAt = h.now()
	return h
}

func (h *Handler) now() time.Time {
	return h.clock.Now().UTC()
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Detector:  h.detector.Name(),
		Timestamp: h.now(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	resp := catalogResponse{
		Coins:          dispenser.Coins(),
		Bills:          dispenser.Bills(),
		CurrencySymbol: h.currencySymbol,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetDenominations(w http.ResponseWriter, _ *http.Request) {
	denominations, err := h.storage.GetDenominations()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := denominationsResponse{
		Denominations: denominations,
		UpdatedAt:     h.currentDenominationsUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutDenominations(w http.ResponseWriter, r *http.Request) {
	var req denominationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if len(req.Denominations) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid denominations", "denominations must contain at least one value")
		return
	}

	values, err := dispenser.DenominationsFromDecimals(req.Denominations)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid denominations", err.Error())
		return
	}

	if err := h.storage.SetDenominations(values); err != nil {
		if errors.Is(err, storage.ErrInvalidDenominations) {
			writeError(w, http.StatusBadRequest, "Invalid denominations", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markDenominationsUpdated()

	denominations, err := h.storage.GetDenominations()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := denominationsResponse{
		Denominations: denominations,
		UpdatedAt:     h.currentDenominationsUpdatedAt(),
		Message:       "Denominations updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.ObserveBreakdownFailure(metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if req.Amount == nil {
		h.metrics.ObserveBreakdownFailure(metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, "Invalid request", "amount is required")
		return
	}

	amount, err := dispenser.AmountFromDecimal(*req.Amount)
	if err != nil {
		h.writeBreakdownError(w, err)
		return
	}

	coins, err := dispenser.DenominationsFromDecimals(req.Coins)
	if err != nil {
		h.writeBreakdownError(w, err)
		return
	}

	breakdown, err := h.computeBreakdown(amount, coins)
	if err != nil {
		h.writeBreakdownError(w, err)
		return
	}

	resp := breakdownResponse{
		Amount:     breakdown.Amount,
		Coins:      countsByKey(breakdown.Counts),
		TotalCoins: breakdown.TotalCoins(),
		Dispensed:  breakdown.Dispensed(),
		Remainder:  breakdown.Remainder,
		Lines:      breakdown.Lines(h.currencySymbol),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large",
				fmt.Sprintf("uploads are limited to %d bytes", h.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "expected a multipart form with a file field")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to read uploaded file")
		return
	}

	coins, err := coinsFromForm(r.MultipartForm.Value["coins"])
	if err != nil {
		h.writeBreakdownError(w, err)
		return
	}

	img := detection.Image{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	}

	source := h.detector.Name()
	start := h.clock.Now()
	result, err := h.detector.Detect(r.Context(), img)
	elapsed := h.clock.Since(start)
	if err != nil {
		h.metrics.ObserveDetection(source, detectionOutcome(err), elapsed)
		h.logger.Warn("bill detection failed",
			zap.String("source", source),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeDetectionError(w, err)
		return
	}
	h.metrics.ObserveDetection(source, metrics.OutcomeSuccess, elapsed)

	breakdown, err := h.computeBreakdown(result.Amount, coins)
	if err != nil {
		h.writeBreakdownError(w, err)
		return
	}

	resp := detectResponse{
		Source:        source,
		TotalAmount:   result.Amount,
		BillsDetected: countsByKey(result.Bills),
		CoinChange:    countsByKey(breakdown.Counts),
		TotalCoins:    breakdown.TotalCoins(),
		Remainder:     breakdown.Remainder,
		Lines:         breakdown.Lines(h.currencySymbol),
		Message:       result.Message,
	}
	writeJSON(w, http.StatusOK, resp)
}

// computeBreakdown runs the dispenser with coins, falling back to the stored
// default selection when coins is nil.
func (h *Handler) computeBreakdown(amount int, coins []int) (dispenser.Breakdown, error) {
	if coins == nil {
		defaults, err := h.storage.GetDenominations()
		if err != nil {
			return dispenser.Breakdown{}, err
		}
		coins = defaults
	}

	breakdown, err := h.dispenser.ComputeBreakdown(amount, coins)
	if err != nil {
		return dispenser.Breakdown{}, err
	}
	h.metrics.ObserveBreakdown(breakdown.Counts, breakdown.Remainder)
	return breakdown, nil
}

func (h *Handler) writeBreakdownError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispenser.ErrInvalidAmount):
		h.metrics.ObserveBreakdownFailure(metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, "Invalid amount", err.Error())
	case errors.Is(err, dispenser.ErrInvalidDenomination):
		h.metrics.ObserveBreakdownFailure(metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, "Invalid denomination", err.Error(),
			"Pick denominations from the coin catalog at /api/catalog")
	default:
		h.metrics.ObserveBreakdownFailure(metrics.OutcomeError)
		writeInternalError(w, err)
	}
}

func writeDetectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detection.ErrEmptyImage):
		writeError(w, http.StatusBadRequest, "Invalid image", err.Error())
	case errors.Is(err, detection.ErrUnsupportedImage):
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported image", err.Error(),
			"Please upload a JPG, PNG or HEIC file")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Detection timed out", err.Error())
	case errors.Is(err, detection.ErrRemoteDetection),
		errors.Is(err, detection.ErrUnknownDenomination),
		errors.Is(err, dispenser.ErrInvalidAmount):
		writeError(w, http.StatusBadGateway, "Detection failed", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func detectionOutcome(err error) string {
	if errors.Is(err, detection.ErrEmptyImage) || errors.Is(err, detection.ErrUnsupportedImage) {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}

// coinsFromForm parses "coins" form values. Each value may hold a comma-separated
// list. No values, or only blank ones, mean "use the default selection".
// coinsFromForm returns nil when the coins field is absent and an empty
// selection when it is present but blank.
func coinsFromForm(values []string) ([]int, error) {
	if values == nil {
		return nil, nil
	}
	raw := []decimal.Decimal{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			d, err := decimal.NewFromString(part)
			if err != nil {
				return nil, fmt.Errorf("%w: got %q", dispenser.ErrInvalidDenomination, part)
			}
			raw = append(raw, d)
		}
	}
	return dispenser.DenominationsFromDecimals(raw)
}

func countsByKey(counts map[int]int) map[string]int {
	out := make(map[string]int, len(counts))
	for value, count := range counts {
		out[strconv.Itoa(value)] = count
	}
	return out
}

func (h *Handler) currentDenominationsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.denominationsUpdatedAt
}

func (h *Handler) markDenominationsUpdated() {
	h.mu.Lock()
	h.denominationsUpdatedAt = h.now()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type denominationsRequest struct {
	Denominations []decimal.Decimal `json:"denominations"`
}

type breakdownRequest struct {
	Amount *decimal.Decimal  `json:"amount"`
	Coins  []decimal.Decimal `json:"coins"`
}

type breakdownResponse struct {
	Amount     int            `json:"amount"`
	Coins      map[string]int `json:"coins"`
	TotalCoins int            `json:"totalCoins"`
	Dispensed  int            `json:"dispensed"`
	Remainder  int            `json:"remainder"`
	Lines      []string       `json:"lines"`
}

type detectResponse struct {
	Source        string         `json:"source"`
	TotalAmount   int            `json:"totalAmount"`
	BillsDetected map[string]int `json:"billsDetected"`
	CoinChange    map[string]int `json:"coinChange"`
	TotalCoins    int            `json:"totalCoins"`
	Remainder     int            `json:"remainder"`
	Lines         []string       `json:"lines"`
	Message       string         `json:"message,omitempty"`
}

type catalogResponse struct {
	Coins          []int  `json:"coins"`
	Bills          []int  `json:"bills"`
	CurrencySymbol string `json:"currencySymbol"`
}

type denominationsResponse struct {
	Denominations []int     `json:"denominations"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Message       string    `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Detector  string    `json:"detector"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
