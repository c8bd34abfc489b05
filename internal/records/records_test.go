package records

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaidya/internal/patient"
	redisclient "github.com/hackgods/vaidya/internal/redis"
)

type recordMap map[uuid.UUID]*patient.MedicalRecord

func (m recordMap) GetRecord(_ context.Context, id uuid.UUID) (*patient.MedicalRecord, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, patient.ErrRecordNotFound
}

type fixture struct {
	svc      *Service
	now      time.Time
	userID   uuid.UUID
	recordID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		now:      time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
		userID:   uuid.New(),
		recordID: uuid.New(),
	}
	fileURL := "https://files.example/r.pdf"
	store := recordMap{f.recordID: {ID: f.recordID, UserID: f.userID, Type: "lab_report", FileURL: &fileURL}}

	f.svc = NewService(redisclient.NewCodeStore(client, "otp:record:"), store, nil, "test-secret", "https://mediconnect.com/", 5*time.Minute, nil)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func tokenFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestIssueAndVerify(t *testing.T) {
	f := newFixture(t)

	access, err := f.svc.Issue(context.Background(), f.userID, f.recordID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(access.Link, "https://mediconnect.com/view-record?token="))
	assert.Len(t, access.OTP, 6)
	assert.Equal(t, f.now.Add(5*time.Minute), access.ExpiresAt)

	rec, err := f.svc.Verify(context.Background(), tokenFrom(t, access.Link), access.OTP)
	require.NoError(t, err)
	assert.Equal(t, f.recordID, rec.ID)

	_, err = f.svc.Verify(context.Background(), tokenFrom(t, access.Link), access.OTP)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)

	access, err := f.svc.Issue(context.Background(), f.userID, f.recordID)
	require.NoError(t, err)

	f.now = f.now.Add(6 * time.Minute)
	_, err = f.svc.Verify(context.Background(), tokenFrom(t, access.Link), access.OTP)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	f := newFixture(t)

	access, err := f.svc.Issue(context.Background(), f.userID, f.recordID)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), tokenFrom(t, access.Link)+"x", access.OTP)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(nil, nil, nil, "other-secret", "", 0, nil)
	other.SetClock(func() time.Time { return f.now })
	_, err = other.Verify(context.Background(), tokenFrom(t, access.Link), access.OTP)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongCodeBurnsIt(t *testing.T) {
	f := newFixture(t)

	access, err := f.svc.Issue(context.Background(), f.userID, f.recordID)
	require.NoError(t, err)
	token := tokenFrom(t, access.Link)

	wrong := "000000"
	if access.OTP == wrong {
		wrong = "111111"
	}
	_, err = f.svc.Verify(context.Background(), token, wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.svc.Verify(context.Background(), token, access.OTP)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestSixDigitsRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := sixDigits()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}
}
