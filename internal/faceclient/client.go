package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Candidate is one gallery hit from an identification call.
type Candidate struct {
	StudentCode string  `json:"student_code"`
	Similarity  float64 `json:"similarity"`
}

// IdentifyResult contains the best candidate for a probe image, if any
// cleared the service's threshold.
type IdentifyResult struct {
	Matched     bool
	StudentCode string
	Similarity  float64
	Threshold   float64
}

// EnrollResult contains the enrollment response for a reference image.
type EnrollResult struct {
	StudentCode string
	Success     bool
	Message     string
}

// Client calls the face recognition microservice. The service is an opaque
// collaborator: a probe image plus a gallery name in, a best candidate or
// no-match out.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, calls return canned matches so the
// rest of the system runs without the recognition service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Identify searches the classroom gallery for the probe image and returns the
// best candidate above the service threshold.
func (c *Client) Identify(ctx context.Context, imageURL, gallery string) (*IdentifyResult, error) {
	if c.Skip {
		return &IdentifyResult{Matched: true, StudentCode: "SKIP-0001", Similarity: 0.95, Threshold: 0.5}, nil
	}
	if imageURL == "" {
		return nil, fmt.Errorf("image url required")
	}

	body, _ := json.Marshal(map[string]string{
		"image_url": imageURL,
		"gallery":   gallery,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/identify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Matches   []Candidate `json:"matches"`
		Threshold float64     `json:"threshold"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	res := &IdentifyResult{Threshold: out.Threshold}
	if len(out.Matches) > 0 {
		best := out.Matches[0]
		for _, m := range out.Matches[1:] {
			if m.Similarity > best.Similarity {
				best = m
			}
		}
		if best.Similarity >= out.Threshold {
			res.Matched = true
			res.StudentCode = best.StudentCode
			res.Similarity = best.Similarity
		}
	}
	return res, nil
}

// Enroll registers a student's reference image into the classroom gallery.
func (c *Client) Enroll(ctx context.Context, studentCode, imageURL, gallery, name string) (*EnrollResult, error) {
	if c.Skip {
		return &EnrollResult{StudentCode: studentCode, Success: true, Message: "enrolled (mock)"}, nil
	}

	body, _ := json.Marshal(map[string]string{
		"student_code": studentCode,
		"image_url":    imageURL,
		"gallery":      gallery,
		"name":         name,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/enroll", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &EnrollResult{StudentCode: studentCode, Success: out.Success, Message: out.Message}, nil
}

// Remove deletes a student's reference from the gallery.
func (c *Client) Remove(ctx context.Context, studentCode, gallery string) error {
	if c.Skip {
		return nil
	}

	body, _ := json.Marshal(map[string]string{
		"student_code": studentCode,
		"gallery":      gallery,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/enroll", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
