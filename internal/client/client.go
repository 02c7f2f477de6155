// Package client talks to the participant API of a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"giveaway-quiz-service/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Completion is the server's answer to a completed quiz.
type Completion struct {
	Outcome      domain.Outcome
	RedirectLink string
}

type apiResponse struct {
	Success      bool   `json:"success"`
	TooLate      bool   `json:"tooLate"`
	Message      string `json:"message"`
	RedirectLink string `json:"redirectLink"`
}

// RoomStatus fetches the public status of roomCode; an empty code asks for
// the newest active room.
func (c *Client) RoomStatus(ctx context.Context, roomCode string) (domain.RoomStatus, error) {
	path := "/api/quiz/public"
	if roomCode != "" {
		path = "/api/room/" + url.PathEscape(roomCode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RoomStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.RoomStatus{}, fmt.Errorf("room status: unexpected status %s", resp.Status)
	}
	var status domain.RoomStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return domain.RoomStatus{}, fmt.Errorf("decode room status: %w", err)
	}
	return status, nil
}

func (c *Client) Join(ctx context.Context, roomCode, sessionID, visitorID string) (domain.Outcome, error) {
	_, outcome, err := c.post(ctx, "/api/quiz/join", map[string]string{
		"roomCode":  roomCode,
		"sessionId": sessionID,
		"visitorId": visitorID,
	})
	return outcome, err
}

func (c *Client) Complete(ctx context.Context, sessionID string) (Completion, error) {
	res, outcome, err := c.post(ctx, "/api/quiz/complete", map[string]string{"sessionId": sessionID})
	if err != nil {
		return Completion{Outcome: outcome}, err
	}
	return Completion{Outcome: outcome, RedirectLink: res.RedirectLink}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (apiResponse, domain.Outcome, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return apiResponse{}, domain.OutcomeNotFound, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apiResponse{}, domain.OutcomeNotFound, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return apiResponse{}, domain.OutcomeNotFound, err
	}
	defer resp.Body.Close()

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return apiResponse{}, domain.OutcomeNotFound, fmt.Errorf("decode %s response: %w", path, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return res, domain.OutcomeAccepted, nil
	case http.StatusConflict:
		return res, domain.OutcomeFull, nil
	case http.StatusNotFound:
		return res, domain.OutcomeNotFound, nil
	default:
		return res, domain.OutcomeNotFound, fmt.Errorf("%s: %s: %s", path, resp.Status, res.Message)
	}
}
