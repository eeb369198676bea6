package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	accountmodels "accounting/internal/account/models"
	accountstore "accounting/internal/account/store"
	"accounting/internal/category/models"
	"accounting/internal/category/service"
	categorystore "accounting/internal/category/store"
	"accounting/internal/transport/http/links"
	"accounting/pkg/collection"
	dErrors "accounting/pkg/domain-errors"
	outboxstore "accounting/pkg/platform/outbox/store"
	"accounting/pkg/platform/tx"
	"accounting/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router   chi.Router
	accounts *accountstore.InMemoryStore
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	categories := categorystore.NewInMemory()
	s.accounts = accountstore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := service.New(categories, s.accounts, tx.NewMemoryRunner(categories, s.accounts),
		service.WithLogger(logger))
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, logger, links.Config{Limits: collection.Limits{DefaultSize: 2, MaxSize: 10}}).Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = testutil.NewRequest(s.T(), method, "http://books.example.com"+path)
	} else {
		req = testutil.NewRequestWithBody(s.T(), method, "http://books.example.com"+path, body)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) create(key, name string) {
	body := `{"href": "/categories/id/` + key + `", "name": "` + name + `"}`
	rr := s.do(http.MethodPost, "/categories", body)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
}

func (s *HandlerSuite) TestCreateAndGet() {
	rr := s.do(http.MethodPost, "/categories", `{"href": "https://elsewhere/categories/id/A001", "name": "Current assets"}`)
	s.Equal("http://books.example.com/categories/id/A001", testutil.AssertCreated(s.T(), rr))
	testutil.AssertMediaType(s.T(), rr)

	rr = s.do(http.MethodGet, "/categories/id/A001", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[CategoryResponse](s.T(), rr)
	s.Equal("Current assets", got.Name)
	s.Equal("http://books.example.com/categories/id/A001", got.Href)
}

func (s *HandlerSuite) TestCreateErrors() {
	s.create("A001", "Assets")

	s.Run("duplicate key", func() {
		rr := s.do(http.MethodPost, "/categories", `{"href": "/categories/id/A001", "name": "Again"}`)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("href without key", func() {
		rr := s.do(http.MethodPost, "/categories", `{"href": "/", "name": "x"}`)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})

	s.Run("dot segment keys", func() {
		for _, href := range []string{"/categories/id/..", "/categories/id/%2E", "/categories/id/%2E%2E"} {
			rr := s.do(http.MethodPost, "/categories", `{"href": "`+href+`", "name": "x"}`)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
		}
	})

	s.Run("missing name", func() {
		rr := s.do(http.MethodPost, "/categories", `{"href": "/categories/id/B"}`)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})

	s.Run("malformed JSON", func() {
		rr := s.do(http.MethodPost, "/categories", `{"href":`)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *HandlerSuite) TestUpdate() {
	s.create("A001", "Assets")

	rr := s.do(http.MethodPut, "/categories", `{"href": "/categories/id/A001", "name": "Current assets"}`)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("Current assets", testutil.UnmarshalResponse[CategoryResponse](s.T(), rr).Name)

	rr = s.do(http.MethodPut, "/categories", `{"href": "/categories/id/NOPE", "name": "x"}`)
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestListLinks() {
	for _, k := range []string{"A", "B", "C", "D", "E"} {
		s.create(k, "cat "+k)
	}

	rr := s.do(http.MethodGet, "/categories?start=1&page_size=2", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	env := testutil.UnmarshalCollection[CategoryResponse](s.T(), rr)

	s.Equal(5, env.Count)
	s.Equal(2, env.PageSize)
	s.Equal("http://books.example.com/categories?start=1&page_size=2", env.Href)
	s.Equal("http://books.example.com/categories?start=1&page_size=2", env.First)
	s.Equal("http://books.example.com/categories?start=3&page_size=2", env.Next)
	s.Empty(env.Previous)
	s.Require().Len(env.Items, 2)
	s.Equal("http://books.example.com/categories/id/A", env.Items[0].Href)

	s.Run("default page size applies", func() {
		rr := s.do(http.MethodGet, "/categories", "")
		env := testutil.UnmarshalCollection[CategoryResponse](s.T(), rr)
		s.Len(env.Items, 2)
	})

	s.Run("page size above the maximum is rejected", func() {
		rr := s.do(http.MethodGet, "/categories?page_size=11", "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("start below one is rejected", func() {
		rr := s.do(http.MethodGet, "/categories?start=0", "")
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestChildren() {
	for _, k := range []string{"A0", "A01", "A02", "A1"} {
		s.create(k, "cat "+k)
	}

	rr := s.do(http.MethodGet, "/categories/children/id/A0?page_size=10", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	env := testutil.UnmarshalCollection[CategoryResponse](s.T(), rr)

	s.Equal(3, env.Count)
	s.Equal("http://books.example.com/categories/children/id/A0?start=1&page_size=10", env.Href)
	s.Equal("http://books.example.com/categories/id/A0", env.Items[0].Href, "a category is its own descendant")
}

func (s *HandlerSuite) TestRename() {
	s.create("A001", "Current assets")
	for _, name := range []string{"Cash", "Bank"} {
		s.Require().NoError(s.accounts.Create(context.Background(), &accountmodels.Account{Category: "A001", Name: name}))
	}

	rr := s.do(http.MethodPost, "/categories/id/A001", `{"category_id": "A002"}`)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Equal("http://books.example.com/categories/id/A002", rr.Header().Get("Location"))
	s.Equal("Current assets", testutil.UnmarshalResponse[CategoryResponse](s.T(), rr).Name)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/categories/id/A001", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/categories/id/A002", "").Code)

	moved, err := s.accounts.CountByCategory(context.Background(), "A002")
	s.Require().NoError(err)
	s.Equal(2, moved)

	s.Run("target in use", func() {
		s.create("B", "Other")
		rr := s.do(http.MethodPost, "/categories/id/B", `{"category_id": "A002"}`)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("unknown source", func() {
		rr := s.do(http.MethodPost, "/categories/id/NOPE", `{"category_id": "Z"}`)
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("invalid target key", func() {
		rr := s.do(http.MethodPost, "/categories/id/B", `{"category_id": "`+strings.Repeat("x", 21)+`"}`)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestEscapedKeys() {
	s.create("A%2F1", "Slash")

	rr := s.do(http.MethodGet, "/categories/id/A%2F1", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("http://books.example.com/categories/id/A%2F1", testutil.UnmarshalResponse[CategoryResponse](s.T(), rr).Href)
}

func (s *HandlerSuite) TestDelete() {
	s.create("A001", "Assets")
	s.create("B001", "Liabilities")
	s.Require().NoError(s.accounts.Create(context.Background(), &accountmodels.Account{Category: "A001", Name: "Cash"}))

	rr := s.do(http.MethodDelete, "/categories/id/A001", "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/categories/id/B001", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/categories/id/B001", "").Code)
}

type failingService struct {
	Service
}

func (failingService) ListCategories(context.Context, collection.Window) (*collection.Page[*models.Category], error) {
	return nil, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to list categories")
}

func TestInternalErrorsHideDetails(t *testing.T) {
	router := chi.NewRouter()
	New(failingService{}, slog.New(slog.NewTextHandler(io.Discard, nil)), links.Config{}).Register(router)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/categories"))

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != string(dErrors.CodeInternal) {
		t.Fatalf("unexpected error code %q", body["error"])
	}
	if _, ok := body["error_description"]; ok {
		t.Fatal("internal errors must not carry a description")
	}
}

func TestEventsCarryRequestMetadata(t *testing.T) {
	categories := categorystore.NewInMemory()
	accounts := accountstore.NewInMemory()
	events := outboxstore.NewInMemory()
	svc, err := service.New(categories, accounts, tx.NewMemoryRunner(categories, accounts, events),
		service.WithEventRecorder(events))
	require.NoError(t, err)

	router := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), links.Config{}).Register(router)

	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	req := testutil.NewRequestWithBody(t, http.MethodPost, "/categories", `{"href": "/categories/id/C1", "name": "Equity"}`)
	req = testutil.WithTime(testutil.WithRequestID(req, "req-123"), now)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	entries := events.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventCreated, entries[0].Type)
	assert.Equal(t, "C1", entries[0].AggregateID)
	assert.Equal(t, "req-123", entries[0].RequestID)
	assert.Equal(t, now, entries[0].CreatedAt)
}
