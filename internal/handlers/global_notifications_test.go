package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/services"
)

func TestGlobalNotificationHandlerFeedLifecycle(t *testing.T) {
	env := newHandlerEnv(t)
	admin := env.createUser(t, "admin-1", models.RoleAdmin)
	investor := env.createUser(t, "investor-1", models.RoleInvestor)
	tenant := env.createUser(t, "tenant-1", models.RoleTenant)

	recorder, payload := serve(t, env.global.Create, call{user: admin, method: "POST", body: map[string]any{
		"title":        "Distribution notice",
		"message":      "Q2 dividends are paid on Friday.",
		"type":         "event",
		"target_roles": []string{"investor"},
		"priority":     "high",
	}})
	require.Equal(t, http.StatusCreated, recorder.Code)
	created := decodeData[models.GlobalNotification](t, payload)
	require.Equal(t, models.NotificationTypeEvent, created.Type)
	require.True(t, created.IsActive)

	_, payload = serve(t, env.global.Active, call{user: tenant})
	require.Empty(t, decodeData[[]services.ActiveGlobalNotification](t, payload))

	_, payload = serve(t, env.global.Active, call{user: investor})
	feed := decodeData[[]services.ActiveGlobalNotification](t, payload)
	require.Len(t, feed, 1)
	require.False(t, feed[0].Viewed)

	recorder, _ = serve(t, env.global.View, call{user: investor, method: "POST", params: idParam(created.ID)})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = serve(t, env.global.Dismiss, call{user: investor, method: "POST", params: idParam(created.ID)})
	require.Equal(t, http.StatusOK, recorder.Code)

	_, payload = serve(t, env.global.Active, call{user: investor})
	feed = decodeData[[]services.ActiveGlobalNotification](t, payload)
	require.Len(t, feed, 1)
	require.True(t, feed[0].Viewed)
	require.True(t, feed[0].Dismissed)

	recorder, _ = serve(t, env.global.View, call{user: investor, method: "POST", params: idParam("missing-id")})
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder, payload = serve(t, env.global.Stats, call{user: admin, params: idParam(created.ID)})
	require.Equal(t, http.StatusOK, recorder.Code)
	stats := decodeData[services.GlobalNotificationStats](t, payload)
	require.EqualValues(t, 1, stats.TargetedUsers)
	require.EqualValues(t, 1, stats.DismissedCount)

	recorder, payload = serve(t, env.global.Analytics, call{user: admin, params: idParam(created.ID)})
	require.Equal(t, http.StatusOK, recorder.Code)
	analytics := decodeData[services.GlobalNotificationAnalytics](t, payload)
	require.Equal(t, 1, analytics.TotalViews)
	require.Equal(t, 1, analytics.ViewsByRole[models.RoleInvestor].Dismissed)

	recorder, _ = serve(t, env.global.Delete, call{user: admin, method: "DELETE", params: idParam(created.ID)})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = serve(t, env.global.Get, call{user: admin, params: idParam(created.ID)})
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGlobalNotificationHandlerViewAll(t *testing.T) {
	env := newHandlerEnv(t)
	owner := env.createUser(t, "owner-1", models.RoleOwner)

	for _, title := range []string{"Maintenance window", "New fee schedule"} {
		_, err := env.broadcasts.Create(context.Background(), services.CreateGlobalNotificationInput{
			Title:   title,
			Message: "Details inside.",
		})
		require.NoError(t, err)
	}

	recorder, payload := serve(t, env.global.ViewAll, call{user: owner, method: "POST"})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.EqualValues(t, 2, decodeData[map[string]int](t, payload)["viewed"])
}

func TestGlobalNotificationHandlerUpdateAndList(t *testing.T) {
	env := newHandlerEnv(t)
	admin := env.createUser(t, "admin-1", models.RoleAdmin)

	row, err := env.broadcasts.Create(context.Background(), services.CreateGlobalNotificationInput{
		Title:     "Scheduled downtime",
		Message:   "The portal is offline on Sunday.",
		ExpiresAt: timeRef(time.Now().Add(48 * time.Hour)),
	})
	require.NoError(t, err)

	recorder, payload := serve(t, env.global.Update, call{user: admin, method: "PATCH", params: idParam(row.ID), body: map[string]any{
		"title":            "Rescheduled downtime",
		"target_roles":     []string{"broker", "owner"},
		"clear_expires_at": true,
	}})
	require.Equal(t, http.StatusOK, recorder.Code)
	updated := decodeData[models.GlobalNotification](t, payload)
	require.Equal(t, "Rescheduled downtime", updated.Title)
	require.ElementsMatch(t, []models.Role{models.RoleBroker, models.RoleOwner}, []models.Role(updated.TargetRoles))
	require.Nil(t, updated.ExpiresAt)

	recorder, _ = serve(t, env.global.Update, call{user: admin, method: "PATCH", params: idParam(row.ID), body: map[string]any{
		"target_roles": []string{"landlord"},
	}})
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder, _ = serve(t, env.global.Update, call{user: admin, method: "PATCH", params: idParam("missing"), body: map[string]any{
		"title": "ghost",
	}})
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder, payload = serve(t, env.global.List, call{user: admin, path: "/?limit=10"})
	require.Equal(t, http.StatusOK, recorder.Code)
	items := decodeData[[]services.GlobalNotificationListItem](t, payload)
	require.Len(t, items, 1)
	require.NotNil(t, payload.Meta)
	require.Equal(t, 1, payload.Meta.Total)
	require.Equal(t, 10, payload.Meta.PerPage)
}

func TestGlobalNotificationHandlerCreateValidation(t *testing.T) {
	env := newHandlerEnv(t)
	admin := env.createUser(t, "admin-1", models.RoleAdmin)

	cases := []map[string]any{
		{"message": "missing title"},
		{"title": "missing message"},
		{"title": "t", "message": "m", "type": "gossip"},
		{"title": "t", "message": "m", "target_roles": []string{"superuser"}},
	}
	for _, body := range cases {
		recorder, payload := serve(t, env.global.Create, call{user: admin, method: "POST", body: body})
		require.Equal(t, http.StatusBadRequest, recorder.Code, "%v", body)
		require.False(t, payload.Success)
	}
}

func timeRef(value time.Time) *time.Time {
	return &value
}
