package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opalpixel/invoicing/internal/api/middleware"
	"opalpixel/invoicing/internal/models"
)

var (
	workerIdentity = models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleWorker}
	adminIdentity  = models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
)

// newEngine returns a test engine whose requests carry the given identity,
// standing in for AuthMiddleware. A zero identity leaves the context empty.
func newEngine(caller models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if !caller.IsZero() {
			c.Set(middleware.ContextKeyIdentity, caller)
		}
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var respBody map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	msg, _ := respBody["error"].(string)
	return msg
}

func strp(s string) *string { return &s }
