package records

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/audit"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/patient"
)

const (
	ActionAccessRequested = "medical_record.access_requested"
	ActionAccessGranted   = "medical_record.accessed"
)

var (
	ErrInvalidToken = errors.New("invalid or expired record link")
	ErrInvalidCode  = errors.New("invalid or expired one-time code")
)

// CodeStore keeps one-time codes keyed by token id, with expiry and single-use consumption.
type CodeStore interface {
	Put(ctx context.Context, id, code string, ttl time.Duration) error
	Consume(ctx context.Context, id, code string) (bool, error)
}

type RecordStore interface {
	GetRecord(ctx context.Context, id uuid.UUID) (*patient.MedicalRecord, error)
}

type Claims struct {
	RecordID string `json:"rid"`
	jwt.RegisteredClaims
}

// Access is what the patient receives over WhatsApp.
type Access struct {
	Link      string
	OTP       string
	ExpiresAt time.Time
}

type Service struct {
	codes   CodeStore
	records RecordStore
	audit   audit.Recorder
	secret  []byte
	ttl     time.Duration
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(codes CodeStore, records RecordStore, rec audit.Recorder, secret, baseURL string, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		codes:   codes,
		records: records,
		audit:   rec,
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Issue creates a signed link and a 6-digit code for one record, both valid for the service TTL.
func (s *Service) Issue(ctx context.Context, userID, recordID uuid.UUID) (*Access, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	jti := uuid.NewString()

	claims := Claims{
		RecordID: recordID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign record token: %w", err)
	}

	otp, err := sixDigits()
	if err != nil {
		return nil, err
	}
	if err := s.codes.Put(ctx, jti, otp, s.ttl); err != nil {
		return nil, fmt.Errorf("store record code: %w", err)
	}

	audit.Log(ctx, s.audit, s.logger, audit.Event{
		ActorID:    &userID,
		ActorType:  audit.ActorPatient,
		Action:     ActionAccessRequested,
		EntityType: "medical_record",
		EntityID:   &recordID,
		Metadata:   map[string]any{"jti": jti, "expires_at": expires.UTC().Format(time.RFC3339)},
		CreatedAt:  now,
	})

	return &Access{
		Link:      s.baseURL + "/view-record?token=" + url.QueryEscape(token),
		OTP:       otp,
		ExpiresAt: expires,
	}, nil
}

// Verify checks the link token and consumes its code, returning the record it grants.
// A code can be consumed once, even by a wrong guess.
func (s *Service) Verify(ctx context.Context, token, otp string) (*patient.MedicalRecord, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	recordID, err := uuid.Parse(claims.RecordID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	ok, err := s.codes.Consume(ctx, claims.ID, strings.TrimSpace(otp))
	if err != nil {
		return nil, fmt.Errorf("consume record code: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, patient.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrInvalidToken
	}

	audit.Log(ctx, s.audit, s.logger, audit.Event{
		ActorID:    &userID,
		ActorType:  audit.ActorPatient,
		Action:     ActionAccessGranted,
		EntityType: "medical_record",
		EntityID:   &recordID,
		CreatedAt:  s.now(),
	})
	return rec, nil
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
