package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campusdine/preorder-api/internal/models"
)

// createOrderRequest is the payload for placing a new order
type createOrderRequest struct {
	CustomerID string `json:"customer_id"`
	MealID     string `json:"meal_id"`
	Quantity   int    `json:"quantity"`
}

// reasonRequest carries the mandatory reason for reject and cancel
type reasonRequest struct {
	Reason string `json:"reason"`
}

// readyRequest carries the pickup deadline when marking an order ready
type readyRequest struct {
	PickupTime time.Time `json:"pickup_time"`
}

// redeemRequest accepts both manual code entry and scanned QR payloads.
// QR payloads additionally carry the order ID and the scan timestamp; the
// timestamp is recorded in logs but never validated, the server's own
// clock decides everything.
type redeemRequest struct {
	Code             string `json:"code"`
	OrderID          string `json:"order_id"`
	VerificationCode string `json:"verification_code"`
	Timestamp        string `json:"timestamp"`
}

// orderResponse shapes an order for API consumers. The verification code
// is only present on the creation response.
type orderResponse struct {
	ID               string        `json:"id"`
	CustomerID       string        `json:"customer_id"`
	MealID           string        `json:"meal_id"`
	MealName         string        `json:"meal_name"`
	UnitPriceCents   int64         `json:"unit_price_cents"`
	Quantity         int           `json:"quantity"`
	TotalCents       int64         `json:"total_cents"`
	Status           models.Status `json:"status"`
	VerificationCode string        `json:"verification_code,omitempty"`
	OrderTime        time.Time     `json:"order_time"`
	PickupTime       *time.Time    `json:"pickup_time,omitempty"`
	RedeemedAt       *time.Time    `json:"redeemed_at,omitempty"`
	RejectionReason  *string       `json:"rejection_reason,omitempty"`
	Version          int64         `json:"version"`
}

func toOrderResponse(o *models.Order, includeCode bool) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		MealID:          o.MealID,
		MealName:        o.MealName,
		UnitPriceCents:  o.UnitPriceCents,
		Quantity:        o.Quantity,
		TotalCents:      o.TotalCents(),
		Status:          o.Status,
		OrderTime:       o.OrderTime,
		PickupTime:      o.PickupTime,
		RedeemedAt:      o.RedeemedAt,
		RejectionReason: o.RejectionReason,
		Version:         o.Version,
	}

	if includeCode {
		resp.VerificationCode = o.VerificationCode
	}

	return resp
}

func toOrderResponses(orders []*models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o, false))
	}

	return out
}

// createOrderHandler places a new order
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orderService.PlaceOrder(r.Context(), req.CustomerID, req.MealID, req.Quantity)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, true),
	})
}

// getOrderHandler returns an order by ID
func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.orderService.GetOrder(r.Context(), id)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, false),
	})
}

// approveOrderHandler approves a pending order
func (s *Server) approveOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.orderService.Approve(r.Context(), id)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, false),
	})
}

// rejectOrderHandler rejects a pending order with a reason
func (s *Server) rejectOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req reasonRequest
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orderService.Reject(r.Context(), id, req.Reason)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, false),
	})
}

// readyOrderHandler marks a placed order as ready for pickup
func (s *Server) readyOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req readyRequest
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.PickupTime.IsZero() {
		s.respondWithError(w, http.StatusBadRequest, "pickup_time is required")
		return
	}

	order, err := s.orderService.SetReady(r.Context(), id, req.PickupTime)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, false),
	})
}

// cancelOrderHandler cancels a placed or ready order with a reason
func (s *Server) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req reasonRequest
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orderService.Cancel(r.Context(), id, req.Reason)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, false),
	})
}

// redeemOrderHandler performs pickup verification
func (s *Server) redeemOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	code := req.Code
	if code == "" {
		code = req.VerificationCode
	}

	if req.Timestamp != "" {
		s.logger.Debug("Redeem request from scanned code",
			"orderID", req.OrderID,
			"scannedAt", req.Timestamp)
	}

	order, err := s.redemption.Redeem(r.Context(), code, req.OrderID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponse(order, false),
	})
}

// activeOrdersHandler lists a customer's in-flight orders
func (s *Server) activeOrdersHandler(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	orders, err := s.queryService.ActiveOrdersFor(r.Context(), customerID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponses(orders),
	})
}

// orderHistoryHandler lists a customer's finished orders
func (s *Server) orderHistoryHandler(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	orders, err := s.queryService.HistoryFor(r.Context(), customerID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    toOrderResponses(orders),
	})
}

// statusCountsHandler returns the number of orders per status
func (s *Server) statusCountsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queryService.CountsByStatus(r.Context())

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    counts,
	})
}
