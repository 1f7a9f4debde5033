package req

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidechat/internal/pkg/errs"
)

type bindTarget struct {
	Name string `json:"name"`
}

func TestBindJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"alice"}`))
	r.Header.Set("Content-Type", "application/json")

	var dst bindTarget
	require.Nil(t, BindJSON(r, &dst))
	assert.Equal(t, "alice", dst.Name)
}

func TestBindJSONRequiresJSONContentType(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"alice"}`))
	r.Header.Set("Content-Type", "text/plain")

	var dst bindTarget
	customErr := BindJSON(r, &dst)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUnsupportedMediaType, customErr.Code)
}

func TestBindJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"alice","extra":true}`))
	r.Header.Set("Content-Type", "application/json")

	var dst bindTarget
	customErr := BindJSON(r, &dst)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrInvalidJSONFormat, customErr.Code)
}

func TestBindJSONRejectsTrailingContent(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"alice"}{"again":true}`))
	r.Header.Set("Content-Type", "application/json")

	var dst bindTarget
	customErr := BindJSON(r, &dst)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrExtraContentInBody, customErr.Code)
}
