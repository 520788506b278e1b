package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/repo"
)

// PRCRunner produces the enriched PRC incident map.
type PRCRunner interface {
	Run(ctx context.Context) (map[string]models.EnrichedIncident, error)
}

// RecommendRunner produces recommended-action records.
type RecommendRunner interface {
	Run(ctx context.Context) ([]models.ActionResult, error)
}

// RemediationRunner produces a remediation report.
type RemediationRunner interface {
	Run(ctx context.Context) (models.RemediationReport, error)
}

// OpsService exposes the toolkit operations to the HTTP and gRPC transports.
type OpsService struct {
	logger      *slog.Logger
	prc         PRCRunner
	recommender RecommendRunner
	remediator  RemediationRunner
}

// NewOpsService constructs the service facade. Any runner may be nil; calling an
// operation without its runner fails with a precondition error.
func NewOpsService(logger *slog.Logger, prc PRCRunner, recommender RecommendRunner, remediator RemediationRunner) *OpsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpsService{logger: logger, prc: prc, recommender: recommender, remediator: remediator}
}

// ErrNotConfigured is returned when an operation has no runner wired.
var ErrNotConfigured = errors.New("operation not configured")

// PRCDetails runs one enrichment pass.
func (s *OpsService) PRCDetails(ctx context.Context) (map[string]models.EnrichedIncident, error) {
	if s.prc == nil {
		return nil, fmt.Errorf("prc details: %w", ErrNotConfigured)
	}
	return s.prc.Run(ctx)
}

// Recommend runs the recommended-actions flow.
func (s *OpsService) Recommend(ctx context.Context) ([]models.ActionResult, error) {
	if s.recommender == nil {
		return nil, fmt.Errorf("recommend: %w", ErrNotConfigured)
	}
	return s.recommender.Run(ctx)
}

// Remediate runs the remediation flow.
func (s *OpsService) Remediate(ctx context.Context) (models.RemediationReport, error) {
	if s.remediator == nil {
		return models.RemediationReport{}, fmt.Errorf("remediate: %w", ErrNotConfigured)
	}
	return s.remediator.Run(ctx)
}

// FetchPRCDetails implements the gRPC operation of the same name.
func (s *OpsService) FetchPRCDetails(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := s.PRCDetails(ctx)
	if err != nil {
		s.logger.Error("FetchPRCDetails failed", slog.Any("error", err))
		return nil, status.Error(GRPCCode(err), err.Error())
	}
	return toStruct(out)
}

// RecommendActions implements the gRPC operation of the same name.
func (s *OpsService) RecommendActions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	results, err := s.Recommend(ctx)
	if err != nil {
		s.logger.Error("RecommendActions failed", slog.Any("error", err))
		return nil, status.Error(GRPCCode(err), err.Error())
	}
	return toStruct(map[string]any{"results": results})
}

// TriggerRemediation implements the gRPC operation of the same name.
func (s *OpsService) TriggerRemediation(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, err := s.Remediate(ctx)
	if err != nil {
		s.logger.Error("TriggerRemediation failed", slog.Any("error", err))
		return nil, status.Error(GRPCCode(err), err.Error())
	}
	return toStruct(report)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// GRPCCode maps a domain error to a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrNotConfigured):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, repo.ErrUnexpectedShape):
		return codes.FailedPrecondition
	}

	switch repo.StatusCode(err) {
	case 0:
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	default:
		return codes.Unavailable
	}

	if isTransport(err) {
		return codes.Unavailable
	}
	return codes.Internal
}

// HTTPStatus maps a domain error to the status returned by the HTTP surface: upstream
// statuses pass through, transport failures are 503 and malformed upstream payloads 422.
func HTTPStatus(err error) int {
	if code := repo.StatusCode(err); code != 0 {
		return code
	}
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, repo.ErrUnexpectedShape):
		return http.StatusUnprocessableEntity
	case isTransport(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isTransport(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}
