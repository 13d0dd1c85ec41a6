package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/middleware"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/shortener"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testBaseURL  = "http://sho.rt"
	testURL      = "https://example.com/a/long/path"
	testEmail    = "jane@example.com"
	testPassword = "s3cret!"
)

type testServer struct {
	api    humatest.TestAPI
	links  *store.MemoryStore
	clicks []*analytics.LinkClickedEvent
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	handlers.UseErrorModel()

	logger := zap.NewNop()
	srv := &testServer{links: store.NewMemoryStore()}

	authService, err := auth.NewService(store.NewUserMemoryStore(), bcrypt.MinCost, logger)
	require.NoError(t, err)

	tokens := auth.NewTokens("test-secret", time.Hour)

	gen, err := shortener.NewCodeGenerator(shortener.DefaultCodeLength)
	require.NoError(t, err)

	limiter := ratelimit.NewSlidingWindowLimiter(store.NewRateLimitMemoryStore(), 5, time.Minute)
	linkService := shortener.NewService(srv.links, srv.links, limiter, gen, logger)
	resolver := shortener.NewResolver(srv.links, func(e *analytics.LinkClickedEvent) error {
		srv.clicks = append(srv.clicks, e)

		return nil
	}, logger)

	_, api := humatest.New(t)
	api.UseMiddleware(
		middleware.RequestMeta(api),
		middleware.Session(api, tokens, logger),
		middleware.RateLimit(api, store.NewRateLimitMemoryStore(), logger),
	)

	handlers.RegisterRoutes(api,
		handlers.NewAuthHandler(authService, tokens, false, logger),
		handlers.NewLinkHandler(linkService, testBaseURL, logger),
		handlers.NewPublicHandler(linkService, logger),
		handlers.NewRedirectHandler(resolver, logger),
	)

	srv.api = api

	return srv
}

// login registers a user and returns an Authorization header for it.
func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()

	resp := s.api.Post("/api/register", map[string]any{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.api.Post("/api/login", map[string]any{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	return "Authorization: Bearer " + body.Token
}

func (s *testServer) createLink(t *testing.T, authHeader string, body map[string]any) handlers.LinkBody {
	t.Helper()

	resp := s.api.Post("/api/link", authHeader, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out struct {
		Success bool               `json:"success"`
		Link    handlers.LinkBody `json:"link"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.True(t, out.Success)

	return out.Link
}

func assertSuccess(t *testing.T, body []byte) {
	t.Helper()

	var out struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Success, "expected success body, got %s", body)
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))

	msg, ok := out["error"].(string)
	require.True(t, ok, "error body should be {\"error\": ...}, got %s", body)

	return msg
}

func TestRegister(t *testing.T) {
	t.Run("registers a new user", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Post("/api/register", map[string]any{"email": testEmail, "password": testPassword})

		assert.Equal(t, http.StatusOK, resp.Code)
		assertSuccess(t, resp.Body.Bytes())
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		srv := newTestServer(t)
		srv.api.Post("/api/register", map[string]any{"email": testEmail, "password": testPassword})

		resp := srv.api.Post("/api/register", map[string]any{"email": testEmail, "password": testPassword})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "User already exists", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("rejects invalid credentials format", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Post("/api/register", map[string]any{"email": "bad", "password": "123"})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Invalid input", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("rejects passwords bcrypt cannot hash", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Post("/api/register", map[string]any{"email": testEmail, "password": strings.Repeat("x", 80)})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Invalid input", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Post("/api/register", map[string]any{"email": testEmail})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Invalid input", errorMessage(t, resp.Body.Bytes()))
	})
}

func TestLogin(t *testing.T) {
	t.Run("returns user, token and session cookie", func(t *testing.T) {
		srv := newTestServer(t)
		srv.api.Post("/api/register", map[string]any{"email": testEmail, "password": testPassword})

		resp := srv.api.Post("/api/login", map[string]any{"email": testEmail, "password": testPassword})

		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Success bool `json:"success"`
			User    struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"user"`
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.User.ID)
		assert.Equal(t, testEmail, body.User.Email)
		assert.NotEmpty(t, body.Token)

		cookie := resp.Header().Get("Set-Cookie")
		assert.True(t, strings.HasPrefix(cookie, auth.SessionCookieName+"="+body.Token))
		assert.Contains(t, cookie, "HttpOnly")
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		srv := newTestServer(t)
		srv.api.Post("/api/register", map[string]any{"email": testEmail, "password": testPassword})

		resp := srv.api.Post("/api/login", map[string]any{"email": testEmail, "password": "wrong-password"})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "Invalid credentials", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("rejects unknown email", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Post("/api/login", map[string]any{"email": testEmail, "password": testPassword})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "Invalid credentials", errorMessage(t, resp.Body.Bytes()))
	})
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.api.Post("/api/logout")

	assert.Equal(t, http.StatusOK, resp.Code)
	assertSuccess(t, resp.Body.Bytes())
	assert.Contains(t, resp.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestCreateLink(t *testing.T) {
	t.Run("creates link for the session user", func(t *testing.T) {
		srv := newTestServer(t)
		authHeader := srv.login(t, testEmail)

		link := srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL})

		assert.NotEmpty(t, link.ID)
		assert.Len(t, link.ShortCode, shortener.DefaultCodeLength)
		assert.Equal(t, testBaseURL+"/"+link.ShortCode, link.ShortURL)
		assert.Equal(t, testURL, link.OriginalURL)
		assert.Nil(t, link.ExpiresAt)
		assert.Equal(t, int64(0), link.Clicks)
	})

	t.Run("accepts expiration", func(t *testing.T) {
		srv := newTestServer(t)
		authHeader := srv.login(t, testEmail)
		expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		link := srv.createLink(t, authHeader, map[string]any{
			"originalUrl": testURL,
			"expiresAt":   expiresAt.Format(time.RFC3339),
		})

		require.NotNil(t, link.ExpiresAt)
		assert.True(t, expiresAt.Equal(*link.ExpiresAt))
	})

	t.Run("requires a session", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Post("/api/link", map[string]any{"originalUrl": testURL})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "Unauthorized", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		srv := newTestServer(t)
		authHeader := srv.login(t, testEmail)

		resp := srv.api.Post("/api/link", authHeader, map[string]any{"originalUrl": "not a url"})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Invalid input", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("rate limits the sixth link within a minute", func(t *testing.T) {
		srv := newTestServer(t)
		authHeader := srv.login(t, testEmail)

		for i := 0; i < 5; i++ {
			srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL})
		}

		resp := srv.api.Post("/api/link", authHeader, map[string]any{"originalUrl": testURL})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, errorMessage(t, resp.Body.Bytes()), "Rate limit exceeded")
	})
}

func TestListLinks(t *testing.T) {
	srv := newTestServer(t)
	authHeader := srv.login(t, testEmail)
	otherHeader := srv.login(t, "other@example.com")

	first := srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL + "/1"})
	time.Sleep(2 * time.Millisecond)
	second := srv.createLink(t, authHeader, map[string]any{
		"originalUrl": testURL + "/2",
		"expiresAt":   time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	})
	srv.createLink(t, otherHeader, map[string]any{"originalUrl": testURL + "/other"})

	resp := srv.api.Get("/api/link", authHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Links []handlers.LinkListItem `json:"links"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	require.Len(t, body.Links, 2)
	assert.Equal(t, second.ID, body.Links[0].ID)
	assert.True(t, body.Links[0].Expired)
	assert.Equal(t, first.ID, body.Links[1].ID)
	assert.False(t, body.Links[1].Expired)

	t.Run("requires a session", func(t *testing.T) {
		resp := srv.api.Get("/api/link")

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestDeleteLink(t *testing.T) {
	t.Run("deletes own link", func(t *testing.T) {
		srv := newTestServer(t)
		authHeader := srv.login(t, testEmail)
		link := srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL})

		resp := srv.api.Delete("/api/link", authHeader, map[string]any{"linkId": link.ID})

		assert.Equal(t, http.StatusOK, resp.Code)
		assertSuccess(t, resp.Body.Bytes())

		_, err := srv.links.GetByCode(context.Background(), shortener.Code(link.ShortCode))
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("refuses another user's link", func(t *testing.T) {
		srv := newTestServer(t)
		ownerHeader := srv.login(t, testEmail)
		otherHeader := srv.login(t, "other@example.com")
		link := srv.createLink(t, ownerHeader, map[string]any{"originalUrl": testURL})

		resp := srv.api.Delete("/api/link", otherHeader, map[string]any{"linkId": link.ID})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Not found or unauthorized", errorMessage(t, resp.Body.Bytes()))

		_, err := srv.links.GetByCode(context.Background(), shortener.Code(link.ShortCode))
		assert.NoError(t, err)
	})

	t.Run("malformed id is not found or unauthorized", func(t *testing.T) {
		srv := newTestServer(t)
		authHeader := srv.login(t, testEmail)

		resp := srv.api.Delete("/api/link", authHeader, map[string]any{"linkId": "abc"})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Not found or unauthorized", errorMessage(t, resp.Body.Bytes()))
	})

	t.Run("requires a session", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.api.Delete("/api/link", map[string]any{"linkId": "x"})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestRedirect(t *testing.T) {
	srv := newTestServer(t)
	authHeader := srv.login(t, testEmail)
	link := srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL})

	past := time.Now().Add(-time.Minute)
	require.NoError(t, srv.links.Save(context.Background(), &shortener.Link{
		ID: "expired", Code: "gone00", OriginalURL: testURL, UserID: "u", ExpiresAt: &past,
	}))

	t.Run("redirects active code and records the visit", func(t *testing.T) {
		resp := srv.api.Get("/"+link.ShortCode, "User-Agent: TestAgent/1.0", "Referer: https://ref.example")

		assert.Equal(t, http.StatusFound, resp.Code)
		assert.Equal(t, testURL, resp.Header().Get("Location"))

		require.Len(t, srv.clicks, 1)
		assert.Equal(t, link.ShortCode, srv.clicks[0].Code)
		assert.Equal(t, "TestAgent/1.0", srv.clicks[0].UserAgent)
		assert.Equal(t, "https://ref.example", srv.clicks[0].Referrer)
	})

	for _, code := range []string{"gone00", "nope00"} {
		t.Run("renders not-found page for "+code, func(t *testing.T) {
			resp := srv.api.Get("/" + code)

			assert.Equal(t, http.StatusNotFound, resp.Code)
			assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, resp.Body.String(), "Link not found")
			assert.Empty(t, resp.Header().Get("Location"))
		})
	}
}

func TestQRCode(t *testing.T) {
	srv := newTestServer(t)

	t.Run("returns data uri", func(t *testing.T) {
		resp := srv.api.Get("/api/qr?url=" + testBaseURL + "/abc123")

		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			QR string `json:"qr"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.True(t, strings.HasPrefix(body.QR, "data:image/png;base64,"))
	})

	t.Run("requires url", func(t *testing.T) {
		resp := srv.api.Get("/api/qr")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Missing url", errorMessage(t, resp.Body.Bytes()))
	})
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	authHeader := srv.login(t, testEmail)

	srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL})
	srv.createLink(t, authHeader, map[string]any{"originalUrl": testURL})

	resp := srv.api.Get("/api/stats")

	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		TotalLinks int64 `json:"totalLinks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.TotalLinks)
}

func TestContextWithRequestMeta(t *testing.T) {
	meta := handlers.RequestMeta{
		ClientIP:  "192.168.1.1",
		UserAgent: "TestAgent/1.0",
		Referrer:  "https://referrer.com",
	}
	ctx := handlers.ContextWithRequestMeta(context.Background(), meta)

	assert.Equal(t, meta, handlers.RequestMetaFromContext(ctx))
	assert.Equal(t, handlers.RequestMeta{}, handlers.RequestMetaFromContext(context.Background()))
}
