package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/domain/office"
)

// newFaceAPI serves a tiny face service that knows one user.
func newFaceAPI(t *testing.T, authenticated bool) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/authenticate":
			_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": authenticated, "username": "alice"})
		case r.Method == http.MethodPost && r.URL.Path == "/register":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "42", "username": r.FormValue("username")})
		case r.Method == http.MethodGet && r.URL.Path == "/users":
			_, _ = io.WriteString(w, `{"users":[{"username":"alice","image":"anBlZw=="}]}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/users/alice":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func writeConfig(t *testing.T, faceAPI string) (string, string) {
	t.Helper()

	dir := t.TempDir()

	imagePath := filepath.Join(dir, "face.jpg")
	require.NoError(t, os.WriteFile(imagePath, jpegFrame(t, 64), 0o600))

	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	cfg.FaceAPI.BaseURL = faceAPI
	cfg.Camera.ImagePath = imagePath

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path, imagePath
}

// TestVerify_GrantedFromConfiguredCamera prints the result of a granted attempt.
func TestVerify_GrantedFromConfiguredCamera(t *testing.T) {
	t.Parallel()

	path, _ := writeConfig(t, newFaceAPI(t, true).URL)
	out := new(bytes.Buffer)

	require.NoError(t, Verify(context.Background(), &VerifyOptions{ConfigPath: path, Out: out}))

	var result office.AuthResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Equal(t, office.AuthResult{Authenticated: true, Username: "alice"}, result)
}

// TestVerify_DeniedIsNotAnError reports the denial in the output.
func TestVerify_DeniedIsNotAnError(t *testing.T) {
	t.Parallel()

	path, imagePath := writeConfig(t, newFaceAPI(t, false).URL)
	out := new(bytes.Buffer)

	require.NoError(t, Verify(context.Background(), &VerifyOptions{ConfigPath: path, ImagePath: imagePath, Out: out}))

	var result office.AuthResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.False(t, result.Authenticated)
	require.Empty(t, result.Username)
}

// TestUsersCommands lists, registers and deletes users.
func TestUsersCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path, imagePath := writeConfig(t, newFaceAPI(t, true).URL)

	out := new(bytes.Buffer)
	require.NoError(t, ListUsers(ctx, &UsersOptions{ConfigPath: path, Out: out}))
	require.JSONEq(t, `[{"username":"alice","image_bytes":4}]`, out.String())

	out.Reset()
	require.NoError(t, RegisterUser(ctx, &UsersOptions{
		ConfigPath: path, Username: "dave", ImagePath: imagePath, Out: out,
	}))
	require.JSONEq(t, `{"id":"42","username":"dave"}`, out.String())

	require.NoError(t, DeleteUser(ctx, &UsersOptions{ConfigPath: path, Username: "alice"}))

	err := RegisterUser(ctx, &UsersOptions{ConfigPath: path, Username: "erin", Out: io.Discard})

	var validationErr *office.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
