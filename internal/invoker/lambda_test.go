package invoker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"github.com/oriys/lambdaburst/internal/domain"
)

type fakeLambda struct {
	input *lambda.InvokeInput
	out   *lambda.InvokeOutput
	err   error
	ctx   context.Context
}

func (f *fakeLambda) Invoke(ctx context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.input = params
	f.ctx = ctx
	return f.out, f.err
}

func newRequest() *domain.InvokeRequest {
	return &domain.InvokeRequest{
		Index:          7,
		RequestID:      "req-7",
		FunctionName:   "fn",
		Payload:        json.RawMessage("{}"),
		InvocationType: domain.InvocationRequestResponse,
	}
}

func TestLambdaInvokerSuccess(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{
		StatusCode:      200,
		Payload:         []byte(`"ok"`),
		ExecutedVersion: aws.String("$LATEST"),
		LogResult:       aws.String(base64.StdEncoding.EncodeToString([]byte("START RequestId"))),
	}}
	inv := NewLambdaInvoker(fake)

	req := newRequest()
	req.TailLogs = true
	req.Qualifier = "live"
	res, err := inv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.StatusCode != 200 || string(res.Payload) != `"ok"` {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Index != 7 || res.RequestID != "req-7" {
		t.Fatalf("request identity not carried: %+v", res)
	}
	if res.LogTail != "START RequestId" {
		t.Fatalf("expected decoded log tail, got %q", res.LogTail)
	}
	if aws.ToString(fake.input.FunctionName) != "fn" || string(fake.input.Payload) != "{}" {
		t.Fatalf("unexpected input: %+v", fake.input)
	}
	if aws.ToString(fake.input.Qualifier) != "live" || fake.input.LogType != types.LogTypeTail {
		t.Fatalf("qualifier/log type not set: %+v", fake.input)
	}
	if fake.input.InvocationType != types.InvocationTypeRequestResponse {
		t.Fatalf("unexpected invocation type %q", fake.input.InvocationType)
	}
}

func TestLambdaInvokerFunctionError(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
	}}
	res, err := NewLambdaInvoker(fake).Invoke(context.Background(), newRequest())
	if err != nil {
		t.Fatalf("function errors are not call faults: %v", err)
	}
	if res.FunctionError != "Unhandled" {
		t.Fatalf("expected function error, got %q", res.FunctionError)
	}
}

func TestLambdaInvokerEventType(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{StatusCode: 202}}
	req := newRequest()
	req.InvocationType = domain.InvocationEvent
	req.TailLogs = true

	if _, err := NewLambdaInvoker(fake).Invoke(context.Background(), req); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if fake.input.InvocationType != types.InvocationTypeEvent {
		t.Fatalf("expected Event, got %q", fake.input.InvocationType)
	}
	if fake.input.LogType != "" {
		t.Fatal("log tail only applies to RequestResponse calls")
	}
}

func TestLambdaInvokerClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"throttled", &types.TooManyRequestsException{Message: aws.String("rate")}, ErrThrottled},
		{"not found", &types.ResourceNotFoundException{Message: aws.String("gone")}, ErrFunctionNotFound},
		{"generic api code", &smithy.GenericAPIError{Code: "ThrottlingException"}, ErrThrottled},
	}

	for _, tt := range tests {
		fake := &fakeLambda{err: tt.err}
		_, err := NewLambdaInvoker(fake).Invoke(context.Background(), newRequest())
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: original API error should stay in the chain", tt.name)
		}
	}

	plain := errors.New("connection reset")
	_, err := NewLambdaInvoker(&fakeLambda{err: plain}).Invoke(context.Background(), newRequest())
	if !errors.Is(err, plain) || errors.Is(err, ErrThrottled) {
		t.Fatalf("unexpected classification: %v", err)
	}
}

func TestLambdaInvokerTimeout(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{StatusCode: 200}}
	inv := NewLambdaInvoker(fake, WithTimeout(time.Minute))

	if _, err := inv.Invoke(context.Background(), newRequest()); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if _, ok := fake.ctx.Deadline(); !ok {
		t.Fatal("expected a deadline on the call context")
	}

	fake = &fakeLambda{out: &lambda.InvokeOutput{StatusCode: 200}}
	if _, err := NewLambdaInvoker(fake).Invoke(context.Background(), newRequest()); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if _, ok := fake.ctx.Deadline(); ok {
		t.Fatal("no deadline expected without a timeout")
	}
}

func TestFuncAdapter(t *testing.T) {
	var inv Invoker = Func(func(ctx context.Context, req *domain.InvokeRequest) (*domain.InvokeResult, error) {
		return &domain.InvokeResult{Index: req.Index, StatusCode: 200}, nil
	})
	res, err := inv.Invoke(context.Background(), newRequest())
	if err != nil || res.Index != 7 {
		t.Fatalf("unexpected: %+v %v", res, err)
	}
}
