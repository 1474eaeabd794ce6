package service

import (
	"context"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/report"
)

// ExtractorService drives the platform clients for one dialogue step at a
// time. It holds no per-session state; callers pass the token each call.
type ExtractorService struct {
	registry *platform.Registry
	hc       *http.Client
	metrics  *Metrics
	now      func() time.Time
}

func NewExtractorService(registry *platform.Registry, hc *http.Client, metrics *Metrics) *ExtractorService {
	return &ExtractorService{
		registry: registry,
		hc:       hc,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Platform looks up an enabled platform.
func (s *ExtractorService) Platform(key string) (*platform.Platform, error) {
	p, ok := s.registry.Get(key)
	if !ok {
		return nil, goerr.Wrap(domain.ErrPlatformOff, "platform not enabled", goerr.V("platform", key))
	}
	return p, nil
}

// Keys lists the enabled platform keys.
func (s *ExtractorService) Keys() []string {
	return s.registry.Keys()
}

func (s *ExtractorService) client(key, token string) (*platform.Client, error) {
	p, err := s.Platform(key)
	if err != nil {
		return nil, err
	}
	var obs platform.Observer
	if s.metrics != nil {
		obs = s.metrics
	}
	return platform.NewClient(p, s.hc, obs).WithToken(token), nil
}

// Authenticate turns a parsed credential into a token. Raw tokens are passed
// through unchanged; they are validated by the first batch listing.
func (s *ExtractorService) Authenticate(ctx context.Context, key string, cred platform.Credential) (string, error) {
	c, err := s.client(key, "")
	if err != nil {
		return "", err
	}
	if cred.Method == domain.LoginToken {
		if cred.Secret == "" {
			return "", goerr.Wrap(domain.ErrInvalidToken, "empty token",
				goerr.T(domain.TagAuthFailure), goerr.V("platform", key))
		}
		return cred.Secret, nil
	}
	return c.Login(ctx, cred.Identifier, cred.Secret)
}

func (s *ExtractorService) SendOTP(ctx context.Context, key, phone string) error {
	c, err := s.client(key, "")
	if err != nil {
		return err
	}
	return c.SendOTP(ctx, phone)
}

func (s *ExtractorService) VerifyOTP(ctx context.Context, key, phone, otp string) (string, error) {
	c, err := s.client(key, "")
	if err != nil {
		return "", err
	}
	return c.VerifyOTP(ctx, phone, otp)
}

// Batches lists the user's batches. An empty listing is ErrNoBatches.
func (s *ExtractorService) Batches(ctx context.Context, key, token string) ([]domain.BatchSummary, error) {
	c, err := s.client(key, token)
	if err != nil {
		return nil, err
	}
	batches, err := c.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, goerr.Wrap(domain.ErrNoBatches, "empty batch listing",
			goerr.T(domain.TagEmptyResult), goerr.V("platform", key))
	}
	return batches, nil
}

// Subjects lists a batch's subjects on platforms that have a subject level.
// It returns nil, nil where the platform has none.
func (s *ExtractorService) Subjects(ctx context.Context, key, token, batchID string) ([]domain.SubjectSummary, error) {
	c, err := s.client(key, token)
	if err != nil {
		return nil, err
	}
	if c.Platform().Subjects == nil {
		return nil, nil
	}
	subjects, err := c.ListSubjects(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, goerr.Wrap(domain.ErrNoSubjects, "empty subject listing",
			goerr.T(domain.TagEmptyResult),
			goerr.V("platform", key),
			goerr.V("batch_id", batchID))
	}
	return subjects, nil
}

// Extraction is a finished report.
type Extraction struct {
	Report  *report.Builder
	Items   int
	Elapsed time.Duration
}

// Extract walks the batch and builds the text report.
func (s *ExtractorService) Extract(ctx context.Context, key, token string, req platform.ExtractRequest) (*Extraction, error) {
	c, err := s.client(key, token)
	if err != nil {
		return nil, err
	}

	start := s.now()
	sections, err := c.Platform().Extract(ctx, c, req)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.observe(key, outcomeOf(err), elapsed)
		return nil, err
	}

	b, err := report.Build(sections)
	if err != nil {
		s.observe(key, OutcomeEmpty, elapsed)
		return nil, goerr.Wrap(err, "extraction produced no links",
			goerr.T(domain.TagEmptyResult),
			goerr.V("platform", key),
			goerr.V("batch_id", req.Batch.ID),
			goerr.V("content_type", req.ContentType))
	}

	s.observe(key, OutcomeOK, elapsed)
	return &Extraction{Report: b, Items: b.Len(), Elapsed: elapsed}, nil
}

func (s *ExtractorService) observe(key, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ExtractionDone(key, outcome, elapsed)
	}
}

func outcomeOf(err error) string {
	switch domain.KindOf(err) {
	case domain.KindAuthFailure:
		return OutcomeAuth
	case domain.KindEmptyResult:
		return OutcomeEmpty
	default:
		return OutcomeError
	}
}
