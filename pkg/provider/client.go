package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

// Client talks to the booking backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "provider_client").Logger(),
	}
}

func (c *Client) ListServices(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	if err := c.getJSON(ctx, "/services", &out); err != nil {
		return nil, errs.New("failed to fetch services").Kind(errs.KindFetch).Wrap(err)
	}
	return out, nil
}

func (c *Client) ListStaff(ctx context.Context) ([]model.StaffMember, error) {
	var out []model.StaffMember
	if err := c.getJSON(ctx, "/assistants", &out); err != nil {
		return nil, errs.New("failed to fetch assistants").Kind(errs.KindFetch).Wrap(err)
	}
	return out, nil
}

func (c *Client) GetAvailability(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error) {
	q := model.AvailabilityQuery{Date: date, ServiceID: serviceID, AssistantID: staffID}

	var out []model.TimeSlot
	status, err := c.postJSON(ctx, "/availability", q, &out)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", status)
	}
	if err != nil {
		return nil, errs.New("failed to fetch availability").Kind(errs.KindFetch).
			Arg("date", date).Arg("service_id", serviceID).Wrap(err)
	}
	SortSlots(out)
	return out, nil
}

type bookingResponse struct {
	Success   *bool  `json:"success"`
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	Message   string `json:"message"`
}

func (c *Client) CreateBooking(ctx context.Context, req model.BookingRequest) (model.BookingOutcome, error) {
	var resp bookingResponse
	status, err := c.postJSON(ctx, "/bookings", req.Payload(), &resp)
	if err != nil {
		return model.BookingOutcome{}, errs.New("failed to create booking").Kind(errs.KindTransport).Wrap(err)
	}

	if status < 200 || status > 299 || (resp.Success != nil && !*resp.Success) {
		msg := resp.Message
		if msg == "" {
			msg = DefaultFailureMessage
		}
		c.logger.Warn().Int("status", status).Str("message", msg).Msg("booking rejected")
		return model.BookingOutcome{Success: false, Message: msg}, nil
	}

	id := resp.BookingID
	if id == "" {
		id = resp.ID
	}
	// A success without a reference cannot be confirmed to the customer.
	if resp.Success == nil || id == "" {
		c.logger.Error().Int("status", status).Bool("has_success", resp.Success != nil).Msg("booking response without confirmation id")
		return model.BookingOutcome{Success: false, Message: DefaultFailureMessage}, nil
	}

	out := model.BookingOutcome{
		Success:        true,
		ConfirmationID: id,
		Message:        resp.Message,
		ServiceName:    req.Service.Name,
		Date:           req.Date,
		Time:           req.Time,
	}
	if out.Message == "" {
		out.Message = "Booking created successfully"
	}
	if req.Staff != nil {
		out.StaffName = req.Staff.Name
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON returns the status code; a non-2xx body is still decoded into out
// when it is JSON, so callers can surface the backend's message.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp.StatusCode, err
		}
		c.logger.Debug().Int("status", resp.StatusCode).Msg("non-JSON error body")
	}
	return resp.StatusCode, nil
}
