package mwlogger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestNewMWLogger(t *testing.T) {
	tests := []struct {
		name      string
		reqID     string
		status    int
		wantReqID bool
	}{
		{name: "generated id", status: http.StatusCreated},
		{name: "forwarded id", reqID: "abc-123", status: http.StatusOK, wantReqID: true},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromCtx bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, fromCtx = r.Context().Value(loggerWithRequestID{}).(zlog.Zerolog)
				w.WriteHeader(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.reqID != "" {
				req.Header.Set(RequestIDHeader, tt.reqID)
			}
			w := httptest.NewRecorder()

			NewMWLogger(next).ServeHTTP(w, req)

			require.True(t, fromCtx)
			require.Equal(t, tt.status, w.Code)
			require.NotEmpty(t, w.Header().Get(RequestIDHeader))
			if tt.wantReqID {
				require.Equal(t, tt.reqID, w.Header().Get(RequestIDHeader))
			}
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	// без логгера в контексте отдается глобальный
	require.NotNil(t, LoggerFromContext(context.Background()))

	l := zlog.Logger.With().Str("job_id", "x").Logger()
	ctx := WithLogger(context.Background(), l)
	_, ok := ctx.Value(loggerWithRequestID{}).(zlog.Zerolog)
	require.True(t, ok)
}
