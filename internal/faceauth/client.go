package faceauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gopkg.in/go-playground/validator.v9"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

// DefaultBaseURL is the hosted face recognition service.
const DefaultBaseURL = "https://face-lock-api.onrender.com"

// maxErrorBody caps the response text kept in a TransportError.
const maxErrorBody = 512

// User is a registered face.
type User struct {
	Username string `json:"username"`
	// Image is the registered JPEG, sent base64-encoded by the service.
	Image []byte `json:"image"`
}

// Registration is the service answer to Register.
type Registration struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout bounds every call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// Client calls the face recognition service.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	timeout  time.Duration
	validate *validator.Validate
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse face api url: %w", err)
	}

	c := &Client{
		baseURL:  parsed,
		http:     http.DefaultClient,
		timeout:  30 * time.Second,
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// registerRequest is checked before anything is sent.
type registerRequest struct {
	Username string `validate:"required"`
	Image    []byte `validate:"required,min=1"`
}

// Register uploads a face under username.
func (c *Client) Register(ctx context.Context, username string, image []byte) (Registration, error) {
	req := registerRequest{Username: strings.TrimSpace(username), Image: image}
	if err := c.check(req); err != nil {
		return Registration{}, err
	}

	body, contentType, err := multipartBody(map[string]string{"username": req.Username}, req.Image)
	if err != nil {
		return Registration{}, err
	}

	var answer struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
	}

	if err := c.do(ctx, "register", http.MethodPost, "/register", body, contentType, &answer); err != nil {
		return Registration{}, err
	}

	logger.InfoKV(ctx, "User registered", "username", req.Username)

	return Registration{
		ID:       strings.Trim(string(answer.ID), `"`),
		Username: answer.Username,
	}, nil
}

// Users lists the registered faces.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var answer struct {
		Users []User `json:"users"`
	}

	if err := c.do(ctx, "list users", http.MethodGet, "/users", nil, "", &answer); err != nil {
		return nil, err
	}

	return answer.Users, nil
}

// DeleteUser removes a registered face.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &office.ValidationError{Field: "username", Reason: "is required"}
	}

	if err := c.do(ctx, "delete user", http.MethodDelete, "/users/"+url.PathEscape(username), nil, "", nil); err != nil {
		return err
	}

	logger.InfoKV(ctx, "User deleted", "username", username)

	return nil
}

// Authenticate submits image once and reports the match.
func (c *Client) Authenticate(ctx context.Context, image []byte) (office.AuthResult, error) {
	if len(image) == 0 {
		return office.AuthResult{}, &office.ValidationError{Field: "image", Reason: "is required"}
	}

	body, contentType, err := multipartBody(nil, image)
	if err != nil {
		return office.AuthResult{}, err
	}

	var answer struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}

	if err := c.do(ctx, "authenticate", http.MethodPost, "/authenticate", body, contentType, &answer); err != nil {
		return office.AuthResult{}, err
	}

	result := office.AuthResult{Authenticated: answer.Authenticated}
	if answer.Authenticated {
		result.Username = answer.Username
	}

	return result, nil
}

func (c *Client) check(req registerRequest) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		field := strings.ToLower(fieldErrors[0].Field())

		return &office.ValidationError{Field: field, Reason: "is required"}
	}

	return fmt.Errorf("validate registration: %w", err)
}

func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	body io.Reader,
	contentType string,
	out any,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL.String() + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &office.TransportError{Op: op, Err: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &office.TransportError{Op: op, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		logger.WarnKV(ctx, "Face API call failed", "op", op, "status", resp.StatusCode)

		return &office.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &office.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

func multipartBody(fields map[string]string, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", name, err)
		}
	}

	part, err := w.CreateFormFile("image", "image.jpg")
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}

	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
