package api

// Item is a line on a bill shared by the listed participants.
type Item struct {
	Description    string   `json:"description"`
	Amount         string   `json:"amount"`
	ParticipantIDs []string `json:"participantIds"`
}

// CalculateSplitRequest asks how a bill divides between participants. With
// no items the total is split equally; otherwise each person pays their
// items plus tax in proportion to their subtotal.
type CalculateSplitRequest struct {
	Currency       string   `json:"currency"`
	Items          []*Item  `json:"items"`
	Total          string   `json:"total"`
	Subtotal       string   `json:"subtotal"`
	ParticipantIDs []string `json:"participantIds"`
}

type PersonSplit struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type CalculateSplitResponse struct {
	Currency string                  `json:"currency"`
	Splits   map[string]*PersonSplit `json:"splits"`
	// Shares can be used as the splitBetween of an expense.
	Shares    []*Share `json:"shares"`
	TaxAmount string   `json:"taxAmount"`
	Subtotal  string   `json:"subtotal"`
}
