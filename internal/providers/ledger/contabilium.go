package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	"github.com/smallbiznis/repuestos/internal/observability/tracing"
	"github.com/smallbiznis/repuestos/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	operationCreate = "create"
	operationUpdate = "update"

	outcomeDelivered   = "delivered"
	outcomeFailed      = "failed"
	outcomeRejected    = "rejected"
	outcomeMissingID   = "missing_id"
	outcomeRateLimited = "rate_limited"

	maxErrorBody = 512
)

var (
	errMissingID   = errors.New("ledger response has no id")
	errRateLimited = errors.New("ledger call budget exhausted")
)

// ContabiliumProvider talks to the Contabilium REST API.
type ContabiliumProvider struct {
	cfg     Config
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	metrics *obsmetrics.Metrics
	log     *zap.Logger
}

// New returns a NoOpProvider when cfg lacks credentials.
func New(cfg Config, client *http.Client, limiter *rate.Limiter, metrics *obsmetrics.Metrics, log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ledger.contabilium")
	if !cfg.Complete() {
		log.Info("ledger credentials missing, sync disabled")
		return &NoOpProvider{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	client = tracing.WrapHTTPClient(client)
	client.Timeout = cfg.Timeout

	return &ContabiliumProvider{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  client,
		limiter: limiter,
		metrics: metrics,
		log:     log,
	}
}

func (p *ContabiliumProvider) Enabled() bool { return true }

func (p *ContabiliumProvider) CreateProduct(ctx context.Context, item Item) Result {
	body, err := p.call(ctx, operationCreate, http.MethodPost, p.baseURL+"/products", item)
	if err != nil {
		p.fail(ctx, operationCreate, item.Code, err)
		return Result{}
	}

	id, err := parseExternalID(body)
	if err != nil {
		p.fail(ctx, operationCreate, item.Code, err)
		return Result{}
	}

	p.metrics.RecordLedgerSync(ctx, operationCreate, outcomeDelivered)
	return Result{Delivered: true, ExternalID: id}
}

func (p *ContabiliumProvider) UpdateProduct(ctx context.Context, code string, patch Patch) Result {
	endpoint := p.baseURL + "/products/" + url.PathEscape(code)
	if _, err := p.call(ctx, operationUpdate, http.MethodPatch, endpoint, patch); err != nil {
		p.fail(ctx, operationUpdate, code, err)
		return Result{}
	}

	p.metrics.RecordLedgerSync(ctx, operationUpdate, outcomeDelivered)
	return Result{Delivered: true}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger responded %d: %s", e.status, e.body)
}

func (p *ContabiliumProvider) call(ctx context.Context, operation, method, endpoint string, payload any) ([]byte, error) {
	ctx, span := otel.Tracer("repuestos/ledger").Start(ctx, "ledger."+operation)
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("http.method", method),
		attribute.String("ledger.operation", operation),
	)...)

	body, err := p.do(ctx, method, endpoint, payload)
	if err != nil {
		if safeErr := tracing.SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.SetStatus(codes.Error, "ledger call failed")
	}
	return body, err
}

func (p *ContabiliumProvider) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", errRateLimited, err)
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cid := correlation.EnsureCorrelationID(ctx)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "apikey "+p.cfg.APIKey)
	req.Header.Set("X-Account-Email", p.cfg.AccountEmail)
	req.Header.Set(correlation.HeaderName, cid)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &statusError{status: resp.StatusCode, body: snippet}
	}
	return body, nil
}

func (p *ContabiliumProvider) fail(ctx context.Context, operation, code string, err error) {
	outcome := classifyFailure(err)
	p.metrics.RecordLedgerSync(ctx, operation, outcome)

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("primary_code", code),
		zap.String("outcome", outcome),
		zap.String("correlation_id", correlation.ExtractCorrelationID(ctx)),
		zap.Error(err),
	}
	var se *statusError
	if errors.As(err, &se) {
		fields = append(fields, zap.Int("status", se.status))
	}
	p.log.Warn("ledger sync failed", fields...)
}

func classifyFailure(err error) string {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return outcomeRejected
	case errors.Is(err, errMissingID):
		return outcomeMissingID
	case errors.Is(err, errRateLimited):
		return outcomeRateLimited
	default:
		return outcomeFailed
	}
}

// parseExternalID reads the identifier from a create response. The key is
// matched case-insensitively and may hold a string or a number.
func parseExternalID(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: %v", errMissingID, err)
	}
	for key, value := range doc {
		if !strings.EqualFold(key, "id") {
			continue
		}
		switch v := value.(type) {
		case string:
			if id := strings.TrimSpace(v); id != "" {
				return id, nil
			}
		case json.Number:
			return v.String(), nil
		}
	}
	return "", errMissingID
}
