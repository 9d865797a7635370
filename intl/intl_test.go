package intl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "es", Normalize("es-419"))
	assert.Equal(t, "pt", Normalize("pt_BR"))
	assert.Equal(t, "en", Normalize(""))
	assert.Equal(t, "en", Normalize("??"))
}

func TestTranslatorRendersPerLanguage(t *testing.T) {
	tr, err := New("en")
	require.NoError(t, err)

	data := map[string]any{"ReqRef": "REQ-1"}
	assert.Equal(t, "Requisition REQ-1 requires your approval", tr.T("en", "Notify.ReqApprove.Name", data))
	assert.Equal(t, "La solicitud REQ-1 requiere su aprobación", tr.T("es", "Notify.ReqApprove.Name", data))
	assert.Equal(t, "A requisição REQ-1 requer a sua aprovação", tr.T("pt-BR", "Notify.ReqApprove.Name", data))
	// unsupported languages fall back to English
	assert.Equal(t, "Requisition REQ-1 requires your approval", tr.T("de", "Notify.ReqApprove.Name", data))
}

func TestTranslatorMissingMessage(t *testing.T) {
	tr := Default()
	assert.Equal(t, "No.Such.Message", tr.T("fr", "No.Such.Message", nil))
}
