package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/oshokin/smart-office/internal/actuation"
	"github.com/oshokin/smart-office/internal/alert"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/notify"
	"github.com/oshokin/smart-office/internal/version"
)

const (
	urlUsername = "username"

	formUsername = "username"
	formImage    = "image"
)

type statusResponse struct {
	State        office.SensorState `json:"state"`
	Alerts       alert.Evaluation   `json:"alerts"`
	Summary      string             `json:"summary"`
	Healthy      bool               `json:"healthy"`
	Verification actuation.Phase    `json:"verification"`
	Users        *int               `json:"registered_users,omitempty"`
}

type healthResponse struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
}

type doorRequest struct {
	Open *bool `json:"open"`
}

type toggleResponse struct {
	On bool `json:"on"`
}

type verifyResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type registrationResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)
	status := s.service.Status(ctx)

	response := statusResponse{
		State:        status.State,
		Alerts:       status.Alerts,
		Summary:      status.Alerts.Status(),
		Healthy:      status.Alerts.Healthy(),
		Verification: status.Verification,
	}

	if status.Users >= 0 {
		response.Users = &status.Users
	}

	respond(ctx, w, http.StatusOK, response)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	if err := s.service.Health(ctx); err != nil {
		respondProblem(ctx, w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respond(ctx, w, http.StatusOK, healthResponse{Status: "OK", Version: version.Current()})
}

func (s *Server) setDoor(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	var req doorRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		respondError(ctx, w, &office.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	if req.Open == nil {
		respondError(ctx, w, &office.ValidationError{Field: "open", Reason: "is required"})
		return
	}

	if err := s.service.SetDoor(ctx, *req.Open); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOk(ctx, w)
}

func (s *Server) toggleLight(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	if err := s.service.ToggleLight(ctx); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOk(ctx, w)
}

func (s *Server) toggleFan(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)
	respond(ctx, w, http.StatusOK, toggleResponse{On: s.service.ToggleFan(ctx)})
}

func (s *Server) simulateGas(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)
	s.service.SimulateGas(ctx)
	respondOk(ctx, w)
}

func (s *Server) acknowledgeGas(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)
	s.service.AcknowledgeGas(ctx)
	respondOk(ctx, w)
}

// verifyFace uses the uploaded image when the request is multipart and the camera otherwise.
func (s *Server) verifyFace(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	var image []byte

	if isMultipart(r) {
		var err error

		image, err = readImage(w, r)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
	}

	result, err := s.service.Verify(ctx, image)

	switch {
	case errors.Is(err, office.ErrDenied):
		respond(ctx, w, http.StatusOK, verifyResponse{Authenticated: false})
	case err != nil:
		respondError(ctx, w, err)
	default:
		respond(ctx, w, http.StatusOK, verifyResponse{
			Authenticated: result.Authenticated,
			Username:      result.Username,
		})
	}
}

func (s *Server) getUsers(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	users, err := s.service.Users(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respond(ctx, w, http.StatusOK, users)
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	if !isMultipart(r) {
		respondError(ctx, w, &office.ValidationError{Field: "body", Reason: "multipart form expected"})
		return
	}

	image, err := readImage(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	registration, err := s.service.Register(ctx, r.FormValue(formUsername), image)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respond(ctx, w, http.StatusCreated, registrationResponse{
		ID:       registration.ID,
		Username: registration.Username,
	})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	if err := s.service.DeleteUser(ctx, mux.Vars(r)[urlUsername]); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOk(ctx, w)
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)
	respond(ctx, w, http.StatusOK, notificationsResponse{Notifications: s.service.Notifications()})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))

	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// readImage extracts the image part of a multipart form.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, &office.ValidationError{Field: "body", Reason: err.Error()}
	}

	file, _, err := r.FormFile(formImage)
	if err != nil {
		return nil, &office.ValidationError{Field: formImage, Reason: "is required"}
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return nil, &office.ValidationError{Field: formImage, Reason: err.Error()}
	}

	if len(image) == 0 {
		return nil, &office.ValidationError{Field: formImage, Reason: "is empty"}
	}

	return image, nil
}
