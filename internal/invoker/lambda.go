package invoker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"github.com/oriys/lambdaburst/internal/domain"
	"github.com/oriys/lambdaburst/internal/observability"
)

var (
	// ErrThrottled marks calls rejected by Lambda concurrency limits.
	ErrThrottled = errors.New("lambda invocation throttled")
	// ErrFunctionNotFound marks calls to a function or qualifier that does not exist.
	ErrFunctionNotFound = errors.New("lambda function not found")
)

// LambdaAPI is the subset of the Lambda client used here.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker sends requests through the Lambda Invoke API.
type LambdaInvoker struct {
	client  LambdaAPI
	timeout time.Duration
}

// Option configures a LambdaInvoker.
type Option func(*LambdaInvoker)

// WithTimeout bounds each call. Zero means the call waits as long as the
// caller's context allows.
func WithTimeout(d time.Duration) Option {
	return func(l *LambdaInvoker) {
		l.timeout = d
	}
}

// NewLambdaInvoker wraps a Lambda client.
func NewLambdaInvoker(client LambdaAPI, opts ...Option) *LambdaInvoker {
	l := &LambdaInvoker{client: client}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Invoke runs one request and returns its status code and payload.
func (l *LambdaInvoker) Invoke(ctx context.Context, req *domain.InvokeRequest) (*domain.InvokeResult, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	input := &lambda.InvokeInput{
		FunctionName:   aws.String(req.FunctionName),
		Payload:        req.Payload,
		InvocationType: invocationType(req.InvocationType),
	}
	if req.Qualifier != "" {
		input.Qualifier = aws.String(req.Qualifier)
	}
	if req.InvocationType == domain.InvocationRequestResponse {
		if req.TailLogs {
			input.LogType = types.LogTypeTail
		}
		if cc := observability.LambdaClientContext(ctx); cc != "" {
			input.ClientContext = aws.String(cc)
		}
	}

	start := time.Now()
	out, err := l.client.Invoke(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("invoke %s #%d: %w", req.FunctionName, req.Index, classify(err))
	}

	res := &domain.InvokeResult{
		Index:           req.Index,
		RequestID:       req.RequestID,
		StatusCode:      int(out.StatusCode),
		Payload:         out.Payload,
		FunctionError:   aws.ToString(out.FunctionError),
		ExecutedVersion: aws.ToString(out.ExecutedVersion),
		Duration:        elapsed,
	}
	if out.LogResult != nil {
		if tail, err := base64.StdEncoding.DecodeString(*out.LogResult); err == nil {
			res.LogTail = string(tail)
		}
	}
	return res, nil
}

func invocationType(t domain.InvocationType) types.InvocationType {
	switch t {
	case domain.InvocationEvent:
		return types.InvocationTypeEvent
	case domain.InvocationDryRun:
		return types.InvocationTypeDryRun
	default:
		return types.InvocationTypeRequestResponse
	}
}

// classify attaches a sentinel to well-known Lambda API errors while keeping
// the original error in the chain.
func classify(err error) error {
	var tooMany *types.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return errors.Join(ErrThrottled, err)
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return errors.Join(ErrFunctionNotFound, err)
	}

	// Fall back to API error codes for emulators that do not return the
	// exact SDK error types
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return errors.Join(ErrThrottled, err)
		case "ResourceNotFoundException":
			return errors.Join(ErrFunctionNotFound, err)
		}
	}
	return err
}
