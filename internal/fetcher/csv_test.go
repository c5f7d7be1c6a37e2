package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_SemicolonDelimited(t *testing.T) {
	input := "Num_Acc;jour;mois\n202100000001;7;12\n202100000002;1;6\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Num_Acc", "jour", "mois"}, <-headerCh)
	assert.Equal(t, []string{"202100000001", "7", "12"}, rows[0])
}

func TestStreamCSV_NoHeader(t *testing.T) {
	input := "1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " a ; b \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_RaggedRowsAllowed(t *testing.T) {
	input := "a;b;c\n1;2\n1;2;3;4\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: ';'})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
}
