package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/database/testutil"
	"github.com/estatevest/platform/internal/middleware"
	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/services"
	"github.com/estatevest/platform/pkg/response"
)

type handlerEnv struct {
	db            *gorm.DB
	notifications *NotificationHandler
	global        *GlobalNotificationHandler
	personal      *services.NotificationService
	broadcasts    *services.GlobalNotificationService
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	directory, err := services.NewUserDirectory(db)
	require.NoError(t, err)
	global, err := services.NewGlobalNotificationService(db, directory, services.GlobalNotificationConfig{})
	require.NoError(t, err)
	personal, err := services.NewNotificationService(db, global)
	require.NoError(t, err)

	return &handlerEnv{
		db:            db,
		notifications: NewNotificationHandler(personal, directory),
		global:        NewGlobalNotificationHandler(global),
		personal:      personal,
		broadcasts:    global,
	}
}

func (e *handlerEnv) createUser(t *testing.T, id string, role models.Role) *models.User {
	t.Helper()
	user := models.User{
		BaseModel: models.BaseModel{ID: id},
		Email:     id + "@estatevest.test",
		FirstName: id,
		Role:      role,
		IsEnabled: true,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

type call struct {
	user   *models.User
	method string
	path   string
	params gin.Params
	body   any
}

func serve(t *testing.T, handler gin.HandlerFunc, in call) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Reader
	if in.body != nil {
		raw, err := json.Marshal(in.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	method := in.method
	if method == "" {
		method = http.MethodGet
	}
	path := in.path
	if path == "" {
		path = "/"
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = in.params
	if in.user != nil {
		c.Set(middleware.CtxUserIDKey, in.user.ID)
		c.Set(middleware.CtxRoleKey, in.user.Role)
	}

	handler(c)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return recorder, payload
}

func decodeData[T any](t *testing.T, payload response.Response) T {
	t.Helper()
	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func idParam(id string) gin.Params {
	return gin.Params{gin.Param{Key: "id", Value: id}}
}
