package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/telephony"
	parsereservationintent "energy-ai-agent/internal/workers/reservation/parse-reservation-intent"
	placereservationcall "energy-ai-agent/internal/workers/reservation/place-reservation-call"
	recordbooking "energy-ai-agent/internal/workers/reservation/record-booking"
	searchvenues "energy-ai-agent/internal/workers/reservation/search-venues"
	selectvenue "energy-ai-agent/internal/workers/reservation/select-venue"
	sendbookingnotification "energy-ai-agent/internal/workers/reservation/send-booking-notification"

	"github.com/gin-gonic/gin"
)

const (
	candidateLimit  = 5
	defaultRadiusM  = 3000
	defaultKeyword  = "餐廳"
	messageNoVenues = "找不到符合條件的餐廳"
	messageNoPick   = "無法選定餐廳"
)

type askRequest struct {
	Text    string   `json:"text"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	RadiusM *int     `json:"radius_m"`
}

type confirmRequest struct {
	Plan       models.ReservationPlan `json:"plan"`
	Restaurant *models.Venue          `json:"restaurant"`
	Mode       string                 `json:"mode"`
}

// planAndSearch parses the request text and looks up candidates near the plan's location or
// the supplied coordinates.
func (s *Server) planAndSearch(ctx context.Context, req askRequest) (*models.ReservationPlan, []models.Venue, error) {
	parsed, err := s.deps.Intent.Execute(ctx, &parsereservationintent.Input{Text: req.Text})
	if err != nil {
		return nil, nil, fmt.Errorf("parse intent: %w", err)
	}
	plan := parsed.Plan

	keyword := strings.TrimSpace(plan.Cuisine)
	if keyword == "" {
		keyword = defaultKeyword
	}
	radius := defaultRadiusM
	if req.RadiusM != nil && *req.RadiusM > 0 {
		radius = *req.RadiusM
	}
	found, err := s.deps.Places.Execute(ctx, &searchvenues.Input{
		Query:    keyword,
		Location: plan.Location,
		Limit:    candidateLimit,
		Lat:      req.Lat,
		Lng:      req.Lng,
		RadiusM:  radius,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search places: %w", err)
	}
	candidates := found.Candidates
	if candidates == nil {
		candidates = []models.Venue{}
	}
	return &plan, candidates, nil
}

func (s *Server) plan(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text is required")
		return
	}
	plan, candidates, err := s.planAndSearch(c.Request.Context(), req)
	if err != nil {
		respondStatus(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan, "candidates": candidates})
}

func (s *Server) confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.Restaurant == nil {
		badRequest(c, "restaurant is required")
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeCall
	}
	switch mode {
	case models.ModeCall, models.ModeLinkOnly, models.ModeCallAndBridge:
	default:
		badRequest(c, "mode must be one of call, link_only, call_and_bridge")
		return
	}

	ctx := c.Request.Context()
	out, err := s.deps.Caller.Execute(ctx, &placereservationcall.Input{Plan: req.Plan, Restaurant: req.Restaurant, Mode: mode})
	if err != nil {
		respondStatus(c, http.StatusBadGateway, err)
		return
	}

	body := gin.H{"status": out.Status}
	if out.SID != "" {
		body["sid"] = out.SID
	}
	if out.Status == models.StatusLink || out.Status == models.StatusNoPhoneLink {
		body["url"] = out.URL
	}
	if id := s.record(ctx, c, out.Status, req.Plan, req.Restaurant, out); id != "" {
		body["booking_id"] = id
	}
	c.JSON(http.StatusOK, body)
}

// book runs the whole flow from one sentence: parse, search, pick, then call or link.
func (s *Server) book(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text is required")
		return
	}
	ctx := c.Request.Context()

	plan, candidates, err := s.planAndSearch(ctx, req)
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}

	if len(candidates) == 0 {
		out := &placereservationcall.Output{Status: models.StatusNoCandidates, Message: messageNoVenues}
		body := gin.H{"status": out.Status, "message": out.Message, "plan": plan, "candidates": candidates}
		s.finishBooking(ctx, c, body, *plan, nil, out)
		return
	}

	picked, err := s.deps.Picker.Execute(ctx, &selectvenue.Input{Restaurant: plan.Restaurant, Candidates: candidates})
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}
	if !picked.Selected || picked.Restaurant == nil {
		out := &placereservationcall.Output{Status: models.StatusNoSelection, Message: messageNoPick}
		body := gin.H{"status": out.Status, "message": out.Message, "plan": plan, "candidates": candidates}
		s.finishBooking(ctx, c, body, *plan, nil, out)
		return
	}

	out, err := s.deps.Caller.Execute(ctx, &placereservationcall.Input{
		Plan:       *plan,
		Restaurant: picked.Restaurant,
		Mode:       placereservationcall.ModeAuto,
	})
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}

	body := gin.H{"status": out.Status, "message": out.Message, "plan": plan, "restaurant": picked.Restaurant}
	if out.SID != "" {
		body["sid"] = out.SID
	}
	if out.URL != "" {
		body["url"] = out.URL
	}
	s.finishBooking(ctx, c, body, *plan, picked.Restaurant, out)
}

// finishBooking records the outcome, sends the confirmation and writes the response.
func (s *Server) finishBooking(ctx context.Context, c *gin.Context, body gin.H, plan models.ReservationPlan, rest *models.Venue, out *placereservationcall.Output) {
	id := s.record(ctx, c, out.Status, plan, rest, out)
	if id != "" {
		body["booking_id"] = id
	}
	if status := s.notify(ctx, c, id, plan, rest, out); status != "" {
		body["notification"] = status
	}
	c.JSON(http.StatusOK, body)
}

// record persists the outcome when a booking store is configured. Failures are logged; the
// caller still gets the outcome.
func (s *Server) record(ctx context.Context, c *gin.Context, status string, plan models.ReservationPlan, rest *models.Venue, out *placereservationcall.Output) string {
	if s.deps.Recorder == nil {
		return ""
	}
	res, err := s.deps.Recorder.Execute(ctx, &recordbooking.Input{
		Status:     status,
		Plan:       plan,
		Restaurant: rest,
		SID:        out.SID,
		URL:        out.URL,
		Message:    out.Message,
	})
	if err != nil {
		s.reqLog(c).Warn("booking not recorded", map[string]interface{}{"status": status, "error": err.Error()})
		return ""
	}
	return res.BookingID
}

func (s *Server) notify(ctx context.Context, c *gin.Context, bookingID string, plan models.ReservationPlan, rest *models.Venue, out *placereservationcall.Output) string {
	if s.deps.Notifier == nil {
		return ""
	}
	res, err := s.deps.Notifier.Execute(ctx, &sendbookingnotification.Input{
		BookingID:  bookingID,
		Status:     out.Status,
		Plan:       plan,
		Restaurant: rest,
		URL:        out.URL,
		Message:    out.Message,
	})
	if err != nil {
		s.reqLog(c).Warn("booking notification failed", map[string]interface{}{"booking_id": bookingID, "error": err.Error()})
		return sendbookingnotification.StatusFailed
	}
	return res.Status
}

// bridge answers the Twilio Gather callback. Twilio posts Digits; the query may carry digits.
func (s *Server) bridge(c *gin.Context) {
	to := c.Query("to")
	if to == "" {
		to = c.PostForm("to")
	}
	digits := c.Query("digits")
	if digits == "" {
		digits = c.PostForm("Digits")
	}
	doc := telephony.DialTwiML(s.cfg.Integrations.Twilio.Language, to, digits).String()
	c.Data(http.StatusOK, "application/xml", []byte(doc))
}

func (s *Server) listBookings(c *gin.Context) {
	if s.deps.Bookings == nil {
		unavailable(c, "booking store")
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}
	bookings, err := s.deps.Bookings.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

