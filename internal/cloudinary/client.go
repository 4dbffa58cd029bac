package cloudinary

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client stores student reference images and kiosk probe frames in Cloudinary
// via their REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	HTTP      *http.Client
}

// New creates a Cloudinary client. Folder is the root folder under which
// reference images and probe frames are stored.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

// Upload stores raw image bytes under Folder/subfolder.
func (c *Client) Upload(data []byte, filename, subfolder string) (*UploadResult, error) {
	params := c.baseParams(subfolder)
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	return c.post(c.endpoint("upload"), &buf, w.FormDataContentType())
}

// UploadBase64 stores a base64 data URL image, the form kiosk probe frames
// arrive in. Cloudinary accepts data URIs directly via the "file" param.
func (c *Client) UploadBase64(data, subfolder string) (*UploadResult, error) {
	params := c.baseParams(subfolder)
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	_ = w.WriteField("file", data)
	w.Close()

	return c.post(c.endpoint("upload"), &buf, w.FormDataContentType())
}

// Destroy removes a stored image. Used when a student is deleted so the
// reference image does not outlive the enrollment.
func (c *Client) Destroy(publicID string) error {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		"api_key":   c.APIKey,
		"public_id": publicID,
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	w.Close()

	_, err := c.post(c.endpoint("destroy"), &buf, w.FormDataContentType())
	return err
}

func (c *Client) baseParams(subfolder string) map[string]string {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		"api_key":   c.APIKey,
	}
	folder := c.Folder
	if subfolder != "" {
		folder = strings.TrimSuffix(folder, "/") + "/" + subfolder
	}
	if folder != "" {
		params["folder"] = folder
	}
	return params
}

func (c *Client) endpoint(action string) string {
	return fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/%s", c.CloudName, action)
}

func (c *Client) post(url string, body io.Reader, contentType string) (*UploadResult, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloudinary: request failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return &result, nil
}

// PublicIDFromURL recovers the public id from a delivery URL so stored images
// can be destroyed later without persisting the id separately. Delivery URLs
// look like .../image/upload/v123456/folder/name.ext.
func PublicIDFromURL(url string) string {
	const marker = "/upload/"
	i := strings.Index(url, marker)
	if i < 0 {
		return ""
	}
	rest := url[i+len(marker):]
	if strings.HasPrefix(rest, "v") {
		if j := strings.Index(rest, "/"); j > 0 {
			if _, err := strconv.Atoi(rest[1:j]); err == nil {
				rest = rest[j+1:]
			}
		}
	}
	if j := strings.LastIndex(rest, "."); j > 0 {
		rest = rest[:j]
	}
	return rest
}

// sign computes the Cloudinary API signature from the given params.
// api_key and file are excluded from the signature per Cloudinary spec.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
