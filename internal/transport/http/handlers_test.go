package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"sevasetu/internal/audit"
	"sevasetu/internal/conversation"
	"sevasetu/internal/eligibility"
	"sevasetu/internal/review"
	"sevasetu/internal/scheme"
)

type HandlerSuite struct {
	suite.Suite
	server  *httptest.Server
	schemes *scheme.InMemoryStore
}

func (s *HandlerSuite) SetupTest() {
	s.schemes = scheme.NewInMemoryStore()
	auditor := audit.NewPublisher(audit.NewInMemoryStore())

	reviews, err := review.NewService(review.NewInMemoryStore(), auditor, zap.NewNop())
	s.Require().NoError(err)

	sessions, err := conversation.NewService(
		s.schemes, eligibility.NewEngine(), reviews,
		conversation.NewInMemorySessionStore(), auditor, zap.NewNop(), nil)
	s.Require().NoError(err)

	handler := NewHandler(sessions, s.schemes, reviews, zap.NewNop())
	s.server = httptest.NewServer(NewRouter(handler))
	s.T().Cleanup(s.server.Close)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *HandlerSuite) decode(resp *http.Response, into any) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

func (s *HandlerSuite) TestHealth() {
	resp := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *HandlerSuite) TestSchemeEndpoints() {
	rules := scheme.RuleSet{
		Name: "old age pension",
		Criteria: []scheme.Criterion{
			{Field: "personal.age", Operator: scheme.OpGreaterOrEq, Value: scheme.NumberValue(60), Weight: 1},
		},
	}

	s.Run("put creates version 1", func() {
		resp := s.do(http.MethodPut, "/schemes/pension/versions", rules)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)

		var v scheme.SchemeVersion
		s.decode(resp, &v)
		s.Equal(1, v.Version)
		s.True(v.Active)
	})

	s.Run("malformed rules return 422", func() {
		resp := s.do(http.MethodPut, "/schemes/pension/versions", scheme.RuleSet{Name: "broken"})
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})

	s.Run("get historical version", func() {
		resp := s.do(http.MethodGet, "/schemes/pension/versions/1", nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var v scheme.SchemeVersion
		s.decode(resp, &v)
		s.Equal("old age pension", v.Name)
	})

	s.Run("unknown version returns 404", func() {
		resp := s.do(http.MethodGet, "/schemes/pension/versions/42", nil)
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("non-integer version returns 422", func() {
		resp := s.do(http.MethodGet, "/schemes/pension/versions/two", nil)
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})

	s.Run("list active", func() {
		resp := s.do(http.MethodGet, "/schemes", nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var versions []scheme.SchemeVersion
		s.decode(resp, &versions)
		s.Len(versions, 1)
	})
}

func (s *HandlerSuite) TestSessionLifecycle() {
	var sessionID string

	s.Run("start defaults the language", func() {
		resp := s.do(http.MethodPost, "/sessions", map[string]string{"user_id": "user-1"})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)

		var started startSessionResponse
		s.decode(resp, &started)
		s.NotEmpty(started.SessionID)
		s.Equal(conversation.PhaseGreeting, started.Phase)
		sessionID = started.SessionID
	})

	s.Run("advance moves to info collection", func() {
		resp := s.do(http.MethodPost, "/sessions/"+sessionID+"/advance", conversation.Input{})
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var out conversation.Outcome
		s.decode(resp, &out)
		s.Equal(conversation.PhaseInfoCollection, out.Phase)
		s.NotEmpty(out.PendingField)
	})

	s.Run("get returns the session state", func() {
		resp := s.do(http.MethodGet, "/sessions/"+sessionID, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var state conversation.State
		s.decode(resp, &state)
		s.Equal(sessionID, state.SessionID)
	})

	s.Run("unknown session returns 404", func() {
		resp := s.do(http.MethodGet, "/sessions/missing", nil)
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("abandon then advance conflicts", func() {
		resp := s.do(http.MethodPost, "/sessions/"+sessionID+"/abandon", nil)
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.do(http.MethodPost, "/sessions/"+sessionID+"/advance", conversation.Input{})
		s.Equal(http.StatusConflict, resp.StatusCode)
	})

	s.Run("delete is idempotent", func() {
		resp := s.do(http.MethodDelete, "/sessions/"+sessionID, nil)
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)
		resp = s.do(http.MethodDelete, "/sessions/"+sessionID, nil)
		s.Equal(http.StatusNoContent, resp.StatusCode)
	})
}

func (s *HandlerSuite) TestReviewEndpoints() {
	s.Run("empty queue returns 404", func() {
		resp := s.do(http.MethodPost, "/review/next", map[string]string{"reviewer_id": "r1"})
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("missing reviewer id returns 422", func() {
		resp := s.do(http.MethodPost, "/review/next", map[string]string{})
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})

	s.Run("escalate queues a case and it shows as pending", func() {
		resp := s.do(http.MethodPost, "/sessions", map[string]string{"user_id": "user-1"})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
		var started startSessionResponse
		s.decode(resp, &started)

		resp = s.do(http.MethodPost, "/sessions/"+started.SessionID+"/escalate",
			map[string]string{"reason": "citizen asked for a human"})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
		var c review.Case
		s.decode(resp, &c)
		s.True(c.ManuallyEscalated)

		resp = s.do(http.MethodGet, "/review/pending", nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var pending []pendingCase
		s.decode(resp, &pending)
		s.Require().Len(pending, 1)
		s.Equal(c.ID, pending[0].ID)

		resp = s.do(http.MethodPost, "/review/"+c.ID+"/decision",
			review.Decision{ReviewerID: "r1", Kind: review.DecisionApprove})
		s.Equal(http.StatusNoContent, resp.StatusCode)
	})

	s.Run("decision on unknown case returns 404", func() {
		resp := s.do(http.MethodPost, "/review/missing/decision",
			review.Decision{ReviewerID: "r1", Kind: review.DecisionApprove})
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})
}
