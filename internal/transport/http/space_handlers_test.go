package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, s *testServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, s.ts.URL+path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	s.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	s := startTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/register", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if created.Token == "" {
		t.Fatalf("expected non-empty token")
	}

	// Duplicate registration conflicts.
	resp = doJSON(t, s, http.MethodPost, "/api/register", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	resp = doJSON(t, s, http.MethodPost, "/api/login", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, s, http.MethodPost, "/api/login", "", `{"username":"alice","password":"wrong"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestGuestLoginEndpoint(t *testing.T) {
	s := startTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/guest", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var auth AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &auth); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("expected non-empty token")
	}

	found := false
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == "guest_session" && cookie.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected guest_session cookie")
	}
}

func TestCreateSpaceEndpoint(t *testing.T) {
	s := startTestServer(t)
	token := s.registerUser(t, "alice")

	resp := doJSON(t, s, http.MethodPost, "/api/spaces", token, `{"name":"office","width":20,"height":10}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var space SpaceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &space); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if space.Name != "office" || space.Width != 20 || space.Height != 10 {
		t.Fatalf("unexpected space: %+v", space)
	}
	if space.ID == "" || space.OwnerID == "" {
		t.Fatalf("missing identifiers: %+v", space)
	}

	// Without a token the endpoint is unreachable.
	resp = doJSON(t, s, http.MethodPost, "/api/spaces", "", `{"name":"nope","width":5,"height":5}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	// Dimensions are bounded.
	resp = doJSON(t, s, http.MethodPost, "/api/spaces", token, `{"name":"huge","width":5000,"height":5}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetAndListSpacesEndpoints(t *testing.T) {
	s := startTestServer(t)
	token := s.registerUser(t, "alice")

	resp := doJSON(t, s, http.MethodPost, "/api/spaces", token, `{"name":"office","width":10,"height":10}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created SpaceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/spaces/"+created.ID, token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, s, http.MethodGet, "/api/spaces/missing", token, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/spaces", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var spaces []SpaceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &spaces); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(spaces) != 1 || spaces[0].ID != created.ID {
		t.Fatalf("unexpected space list: %+v", spaces)
	}
}

func TestDeleteSpaceEndpoint(t *testing.T) {
	s := startTestServer(t)
	ownerToken := s.registerUser(t, "alice")
	otherToken := s.registerUser(t, "bob")

	resp := doJSON(t, s, http.MethodPost, "/api/spaces", ownerToken, `{"name":"office","width":10,"height":10}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created SpaceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	// Only the owner may delete.
	resp = doJSON(t, s, http.MethodDelete, "/api/spaces/"+created.ID, otherToken, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", resp.Code)
	}

	resp = doJSON(t, s, http.MethodDelete, "/api/spaces/"+created.ID, ownerToken, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, s, http.MethodGet, "/api/spaces/"+created.ID, ownerToken, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestUpdateAvatarEndpoint(t *testing.T) {
	s := startTestServer(t)
	token := s.registerUser(t, "alice")

	resp := doJSON(t, s, http.MethodPut, "/api/users/avatar", token, `{"avatar_url":"https://cdn.example/a.png"}`)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, s, http.MethodPut, "/api/users/avatar", token, `{"avatar_url":"not a url"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
