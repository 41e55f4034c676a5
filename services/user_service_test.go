package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserListsAcceptEnvelopeKeys(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend(t)
	fb.reply("GET", "/api/users", 200, `{"success":true,"users":[{"_id":"u1","name":"Asha","email":"asha@example.com","role":"admin","panDocuments":[]}]}`)
	fb.reply("GET", "/api/users/customers", 200, `{"success":true,"data":[]}`)
	users := NewUserService(fb.client(""), nil)

	all, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].ID)
	assert.Equal(t, models.RoleAdmin, all[0].Role)

	customers, err := users.Customers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, customers)
	assert.Empty(t, customers)
}

func TestUserUpdateValidatesBeforeSending(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend(t)
	fb.reply("PUT", "/api/users/u1", 200, `{"success":true,"message":"User updated"}`)
	users := NewUserService(fb.client(""), nil)

	_, err := users.Update(ctx, "u1", models.UserUpdate{Email: "not-an-email"})
	assert.Equal(t, []string{"email"}, fieldNames(t, err))
	assert.Empty(t, fb.recorded())

	user, err := users.Update(ctx, "u1", models.UserUpdate{Name: "Asha K", Role: models.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Asha K", user.Name)
}

func TestUpdatePANSendsDocuments(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend(t)
	fb.reply("PUT", "/api/users/u1/pan", 200, `{"success":true,"user":{"_id":"u1","name":"Asha","panDocuments":[{"panNumber":"ABCDE1234F","nameOnPan":"Asha","status":"PENDING"}]}}`)
	users := NewUserService(fb.client(""), nil)

	_, err := users.UpdatePAN(ctx, "u1", []models.PANDocument{{PANNumber: "abc", NameOnPAN: "Asha", Status: models.PANStatusPending}})
	assert.Equal(t, []string{"panDocuments[0].panNumber"}, fieldNames(t, err))

	docs := []models.PANDocument{{PANNumber: "ABCDE1234F", NameOnPAN: "Asha", Status: models.PANStatusPending}}
	user, err := users.UpdatePAN(ctx, "u1", docs)
	require.NoError(t, err)
	assert.Equal(t, docs, user.PANDocuments)

	requests := fb.recorded()
	require.Len(t, requests, 1)
	var body map[string][]models.PANDocument
	require.NoError(t, json.Unmarshal(requests[0].Body, &body))
	assert.Equal(t, docs, body["panDocuments"])
}
