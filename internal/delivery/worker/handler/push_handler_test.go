package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/delivery/worker/handler"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	"healthbridge/internal/infra/pubsub"
	"healthbridge/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEventUsecase struct {
	mock.Mock
}

func (m *mockEventUsecase) Handle(ctx context.Context, event *service.PortalEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pushBody(t *testing.T, event *service.PortalEvent) []byte {
	t.Helper()

	msg, err := pubsub.NewPushMessage(event, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	return raw
}

func servePush(h *handler.PushHandler, body []byte) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/push", h.HandlePush)

	req := httptest.NewRequest(http.MethodPost, "/push", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func resetEvent() *service.PortalEvent {
	return &service.PortalEvent{
		RequestID: "req-42",
		Type:      service.EventPasswordResetRequested,
		UserID:    "u-1",
		Email:     "jane@example.com",
		Data:      map[string]string{"token": "abc"},
	}
}

func TestPushHandler_HandlePush(t *testing.T) {
	t.Run("processed event is acked", func(t *testing.T) {
		uc := &mockEventUsecase{}
		uc.On("Handle", mock.MatchedBy(func(ctx context.Context) bool {
			return deliverycontext.GetRequestIDFromContext(ctx) == "req-42"
		}), mock.MatchedBy(func(e *service.PortalEvent) bool {
			return e.Type == service.EventPasswordResetRequested && e.Data["token"] == "abc"
		})).Return(nil).Once()

		rec := servePush(handler.NewPushHandlerWithVerifier(uc, nil, discardLogger()), pushBody(t, resetEvent()))

		assert.Equal(t, http.StatusOK, rec.Code)
		uc.AssertExpectations(t)
	})

	t.Run("invalid event is acked without retry", func(t *testing.T) {
		uc := &mockEventUsecase{}
		uc.On("Handle", mock.Anything, mock.Anything).Return(errors.Wrap(usecase.ErrInvalidEvent, "missing recipient")).Once()

		rec := servePush(handler.NewPushHandlerWithVerifier(uc, nil, discardLogger()), pushBody(t, resetEvent()))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("delivery failure asks for redelivery", func(t *testing.T) {
		uc := &mockEventUsecase{}
		uc.On("Handle", mock.Anything, mock.Anything).Return(errors.New("smtp timeout")).Once()

		rec := servePush(handler.NewPushHandlerWithVerifier(uc, nil, discardLogger()), pushBody(t, resetEvent()))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("undecodable payload is dropped", func(t *testing.T) {
		uc := &mockEventUsecase{}
		body := []byte(`{"message":{"data":"not base64!","messageId":"m-1"},"subscription":"s"}`)

		rec := servePush(handler.NewPushHandlerWithVerifier(uc, nil, discardLogger()), body)

		assert.Equal(t, http.StatusOK, rec.Code)
		uc.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		uc := &mockEventUsecase{}

		rec := servePush(handler.NewPushHandlerWithVerifier(uc, nil, discardLogger()), []byte(`{`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		uc.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("rejected token", func(t *testing.T) {
		uc := &mockEventUsecase{}
		reject := func(*http.Request) error { return errors.New("bad token") }

		rec := servePush(handler.NewPushHandlerWithVerifier(uc, reject, discardLogger()), pushBody(t, resetEvent()))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		uc.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})
}
