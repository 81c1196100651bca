package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/volt-storefront/internal/cart/application"
	"github.com/dmehra2102/volt-storefront/pkg/logging"
)

type viewResp struct {
	Lines []struct {
		ID  string `json:"id"`
		Qty int    `json:"qty"`
	} `json:"lines"`
	Total string `json:"total"`
	Count int    `json:"count"`
}

func call(t *testing.T, srv http.Handler, method, path, body string) (int, viewResp) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var v viewResp
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	}
	return rec.Code, v
}

func TestCartAPI(t *testing.T) {
	srv := NewHandler(logging.Discard(), application.NewStore()).Routes()

	code, v := call(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, v.Lines)
	assert.Equal(t, "0", v.Total)

	call(t, srv, http.MethodPost, "/items", `{"id":"marg","name":"Margherita","price":299}`)
	call(t, srv, http.MethodPost, "/items", `{"id":"marg","name":"Margherita","price":299}`)
	code, v = call(t, srv, http.MethodPost, "/items", `{"id":"pep","name":"Pepperoni","price":"399"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "997", v.Total)
	assert.Equal(t, 3, v.Count)
	require.Len(t, v.Lines, 2)
	assert.Equal(t, "marg", v.Lines[0].ID)
	assert.Equal(t, 2, v.Lines[0].Qty)

	_, v = call(t, srv, http.MethodPut, "/items/marg", `{"qty":0}`)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, "pep", v.Lines[0].ID)

	_, v = call(t, srv, http.MethodPut, "/items/ghost", `{"qty":5}`)
	assert.Len(t, v.Lines, 1)

	_, v = call(t, srv, http.MethodDelete, "/", "")
	assert.Empty(t, v.Lines)
	assert.Equal(t, 0, v.Count)
}

func TestCartAPI_Validation(t *testing.T) {
	srv := NewHandler(logging.Discard(), application.NewStore()).Routes()

	for _, body := range []string{
		`not json`,
		`{"name":"Margherita","price":299}`,
		`{"id":"marg"}`,
		`{"id":"marg","price":-1}`,
	} {
		code, _ := call(t, srv, http.MethodPost, "/items", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}

	code, _ := call(t, srv, http.MethodPut, "/items/marg", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
