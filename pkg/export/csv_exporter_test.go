package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVRenderPrependsBOM(t *testing.T) {
	data := Dataset{
		Headers: []string{"Number", "Title"},
		Rows: []map[string]string{
			{"Number": "C202408310001", "Title": "도서관 냉방 고장"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "\ufeff"))
	require.Contains(t, string(out), "Number,Title")
	require.Contains(t, string(out), "도서관 냉방 고장")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	data := Dataset{
		Headers: []string{"Number", "Status"},
		Rows: []map[string]string{
			{"Number": "C202408310001", "Status": "PENDING"},
		},
	}
	out, err := NewPDFExporter().Render(data, "Complaint Report")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "%PDF"))
}
