package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false"); Gamma sends
// both.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIEvent is a Gamma event; a series event holds one up/down market.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  flexBool    `json:"closed"`
	EndDate string      `json:"endDate"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket is a Gamma market. Outcomes, OutcomePrices and ClobTokenIDs are
// JSON arrays encoded as strings.
type APIMarket struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	ConditionID    string   `json:"conditionId"`
	Slug           string   `json:"slug"`
	Active         flexBool `json:"active"`
	Closed         flexBool `json:"closed"`
	AcceptOrders   flexBool `json:"acceptingOrders"`
	Outcomes       string   `json:"outcomes"`
	OutcomePrices  string   `json:"outcomePrices"`
	ClobTokenIDs   string   `json:"clobTokenIds"`
	StartDate      string   `json:"startDate"`
	EventStartTime string   `json:"eventStartTime"`
	EndDate        string   `json:"endDate"`
	UpdatedAt      string   `json:"updatedAt"`
}

// ToDomainMarket converts a Gamma market into an up/down market. ok is false
// when the market does not carry two outcome tokens.
func (m *APIMarket) ToDomainMarket(eventID string) (domain.Market, bool) {
	tokens := decodeStringList(m.ClobTokenIDs)
	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		return domain.Market{}, false
	}

	dm := domain.Market{
		ID:          m.ID,
		EventID:     eventID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		Outcomes:    [2]string{"Up", "Down"},
		TokenIDs:    [2]string{tokens[0], tokens[1]},
	}
	if prices := decodeStringList(m.OutcomePrices); len(prices) == 2 {
		for i, p := range prices {
			dm.Prices[i], _ = strconv.ParseFloat(p, 64)
		}
	}
	if outcomes := decodeStringList(m.Outcomes); len(outcomes) == 2 {
		dm.Outcomes = [2]string{outcomes[0], outcomes[1]}
		// Index 0 is always Up whatever order Gamma lists them in.
		if strings.EqualFold(outcomes[0], "Down") || strings.EqualFold(outcomes[0], "No") {
			dm.Outcomes[0], dm.Outcomes[1] = dm.Outcomes[1], dm.Outcomes[0]
			dm.TokenIDs[0], dm.TokenIDs[1] = dm.TokenIDs[1], dm.TokenIDs[0]
			dm.Prices[0], dm.Prices[1] = dm.Prices[1], dm.Prices[0]
		}
	}

	dm.EndTime = parseTime(m.EndDate)
	dm.StartTime = parseTime(m.EventStartTime)
	if dm.StartTime.IsZero() {
		dm.StartTime = parseTime(m.StartDate)
	}
	dm.UpdatedAt = parseTime(m.UpdatedAt)
	return dm, true
}

// APIOrder is the order body of POST /order.
type APIOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// APIOrderRequest wraps a signed order with its owner key and time in
// force.
type APIOrderRequest struct {
	Order     APIOrder `json:"order"`
	Owner     string   `json:"owner"`
	OrderType string   `json:"orderType"`
}

// APIOrderResult is the response of POST /order.
type APIOrderResult struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
	OrderID      string `json:"orderID,omitempty"`
	Status       string `json:"status,omitempty"`
	MakingAmount string `json:"makingAmount,omitempty"`
	TakingAmount string `json:"takingAmount,omitempty"`
	ShouldRetry  bool   `json:"shouldRetry,omitempty"`
}

// ToDomainOrderResult converts the CLOB response. Filled amounts are only
// set when the exchange reports a match.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	result := domain.OrderResult{
		Success:     r.Success && r.ErrorMsg == "",
		OrderID:     r.OrderID,
		Message:     r.ErrorMsg,
		ShouldRetry: r.ShouldRetry,
	}
	switch r.Status {
	case "live":
		result.Status = domain.OrderStatusOpen
	case "matched":
		result.Status = domain.OrderStatusMatched
	case "delayed", "unmatched":
		result.Status = domain.OrderStatusPending
	default:
		if result.Success {
			result.Status = domain.OrderStatusPending
		} else {
			result.Status = domain.OrderStatusFailed
		}
	}
	if r.Status == "matched" {
		making, _ := strconv.ParseFloat(r.MakingAmount, 64)
		taking, _ := strconv.ParseFloat(r.TakingAmount, 64)
		result.FilledAmount = making
		if taking > 0 {
			result.FilledPrice = making / taking
		}
	}
	return result
}

func decodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05Z07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
