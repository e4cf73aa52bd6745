package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendGridNotifierPostsMail(t *testing.T) {
	var captured map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, sendGridEndpoint, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewSendGridNotifier("sg-key", "Attendance Office", "office@school.test")
	n.host = srv.URL

	err := n.Send(context.Background(), Message{
		To:      []Recipient{{Name: "Ms. Reyes", Email: "adviser@school.test"}},
		Subject: "Rizal attendance digest",
		Text:    "Jane Doe has 5 absences.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", auth)

	personalizations := captured["personalizations"].([]interface{})
	first := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[Attendance] Rizal attendance digest", first["subject"])
	from := captured["from"].(map[string]interface{})
	assert.Equal(t, "office@school.test", from["email"])
}

func TestSendGridNotifierReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	n := NewSendGridNotifier("bad", "Office", "office@school.test")
	n.host = srv.URL

	err := n.Send(context.Background(), Message{To: []Recipient{{Email: "a@school.test"}}, Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	err = n.Send(context.Background(), Message{Subject: "x"})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), Message{
		To:      []Recipient{{Email: "a@school.test"}, {Email: "b@school.test"}},
		Subject: "digest",
		Text:    "body",
	}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a@school.test,b@school.test", logs.All()[0].ContextMap()["to"])
}
