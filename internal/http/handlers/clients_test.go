package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

func TestClientEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/clients", `{"name":"Ada","email":"ada@example.com","tags":["vip"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c studio.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	path := "/clients/" + c.ID.String()

	rec = api.do(t, http.MethodPost, "/clients", `{"name":"Other","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/clients?q=ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = api.do(t, http.MethodPatch, path, `{"phone":"555-0100"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"phone":"555-0100"`)

	rec = api.do(t, http.MethodPatch, path, `{"total_spent":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "metrics are not patchable")

	rec = api.do(t, http.MethodPost, path+"/notes", `{"content":"loves golden hour","internal":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = api.do(t, http.MethodGet, path+"/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notes":[]`)
	rec = api.do(t, http.MethodGet, path+"/notes?internal=true", "")
	assert.Contains(t, rec.Body.String(), "golden hour")

	start := time.Now().UTC().Add(72 * time.Hour)
	rec = api.do(t, http.MethodPost, "/appointments",
		`{"client_id":"`+c.ID.String()+`","start_time":"`+start.Format(time.RFC3339)+`","session_type":"Family","session_fee":200}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, path+"/appointments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = api.do(t, http.MethodPost, path+"/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recomputed studio.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recomputed))
	assert.Equal(t, 1, recomputed.TotalAppointments)
	assert.Equal(t, 200.0, recomputed.TotalSpent)

	rec = api.do(t, http.MethodGet, path+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"exported_at"`)

	rec = api.do(t, http.MethodPost, path+"/archive", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = api.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
