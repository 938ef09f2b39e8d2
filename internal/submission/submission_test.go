package submission

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartgov/exgratia/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "submissions.csv")

	_, err := Open(path)
	require.NoError(t, err)
	_, err = Open(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header, ",")+"\n", string(data))
}

func TestAppendAndList(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "submissions.csv"))
	require.NoError(t, err)
	fixed := time.Date(2024, 8, 1, 10, 30, 0, 0, time.Local)
	log.now = func() time.Time { return fixed }

	stored, err := log.Append(models.Submission{Name: "Pema Lhamu", Phone: "+919800000001", Details: "roof damaged, \"urgent\""})
	require.NoError(t, err)
	_, err = uuid.Parse(stored.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubmissionReceived, stored.Status)
	assert.True(t, stored.SubmissionDate.Equal(fixed))

	list, err := log.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stored.ID, list[0].ID)
	assert.Equal(t, "roof damaged, \"urgent\"", list[0].Details)
	assert.True(t, list[0].SubmissionDate.Equal(fixed))
}

func TestAppendValidates(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "submissions.csv"))
	require.NoError(t, err)

	_, err = log.Append(models.Submission{Phone: "+919800000001"})
	assert.ErrorIs(t, err, models.ErrMissingSubmissionName)

	list, err := log.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConcurrentAppends(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "submissions.csv"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := log.Append(models.Submission{Name: "Applicant", Phone: "+919800000001"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := log.List()
	require.NoError(t, err)
	assert.Len(t, list, 20)
}

func TestListRejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(Header, ",")+"\nonly,three,fields\n"), 0o644))

	log, err := Open(path)
	require.NoError(t, err)
	_, err = log.List()
	assert.ErrorIs(t, err, ErrMalformedLog)
}
