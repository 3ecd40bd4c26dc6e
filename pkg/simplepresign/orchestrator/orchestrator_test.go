package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-presign/pkg/simplepresign/components"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/sdkheaders"
	"github.com/tendant/simple-presign/pkg/simplepresign/serialization"
	"github.com/tendant/simple-presign/pkg/simplepresign/sigv4"
	"github.com/tendant/simple-presign/pkg/simplepresign/timesource"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func testSigner() *sigv4.Signer {
	return sigv4.NewSigner(aws.NewCredentialsCache(
		credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", "")))
}

func putTo(rawURL, body string) Operation {
	return Operation{
		Name:  "PutObject",
		Input: body,
		Serializer: SerializerFunc(func(_ context.Context, input any, req *smithyhttp.Request) (*smithyhttp.Request, int64, error) {
			u, err := url.Parse(rawURL)
			if err != nil {
				return nil, 0, err
			}
			req.Method = http.MethodPut
			req.URL = u
			req.Host = u.Host
			s := input.(string)
			if s == "" {
				return req, 0, nil
			}
			req, err = req.SetStream(strings.NewReader(s))
			return req, int64(len(s)), err
		}),
	}
}

// testPlugin contributes arbitrary components and a config layer
type testPlugin struct {
	layer   *configbag.FrozenLayer
	builder *components.Builder
}

func (p testPlugin) Config() *configbag.FrozenLayer { return p.layer }
func (p testPlugin) RuntimeComponents() *components.Builder { return p.builder }

type fastRetry struct{ max int }

func (r fastRetry) MaxAttempts() int { return r.max }
func (r fastRetry) ShouldRetry(attempt int, err error) (time.Duration, bool) {
	var respErr *ResponseError
	if !errors.As(err, &respErr) || respErr.HTTPStatusCode() < 500 {
		return 0, false
	}
	return time.Millisecond, attempt < r.max
}

type hookRecorder struct {
	interceptor.Base
	hooks []string
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) ModifyBeforeSerialization(_ context.Context, ictx *interceptor.Context, _ *configbag.Bag) error {
	if ictx.Request != nil {
		return errors.New("request exists before serialization")
	}
	h.hooks = append(h.hooks, interceptor.HookBeforeSerialization)
	return nil
}

func (h *hookRecorder) ModifyBeforeRetryLoop(context.Context, *interceptor.Context, *configbag.Bag) error {
	h.hooks = append(h.hooks, interceptor.HookBeforeRetryLoop)
	return nil
}

func (h *hookRecorder) ModifyBeforeSigning(_ context.Context, ictx *interceptor.Context, _ *configbag.Bag) error {
	if ictx.Request.Header.Get("Authorization") != "" {
		return errors.New("request signed before signing hook")
	}
	h.hooks = append(h.hooks, interceptor.HookBeforeSigning)
	return nil
}

func (h *hookRecorder) ModifyBeforeTransmit(_ context.Context, ictx *interceptor.Context, _ *configbag.Bag) error {
	if ictx.Request.Header.Get("Authorization") == "" {
		return errors.New("request not signed before transmit hook")
	}
	h.hooks = append(h.hooks, interceptor.HookBeforeTransmit)
	return nil
}

func signing() *sigv4.SigningPlugin {
	return sigv4.NewSigningPlugin(sigv4.OperationSigningConfig{Region: "us-east-1", Service: "s3"})
}

func TestInvoke_HookOrder(t *testing.T) {
	rec := &hookRecorder{}
	o := New(testSigner())

	result, err := o.Invoke(context.Background(), putTo("https://example.com/key", "body"), StopBeforeTransmit,
		signing(),
		testPlugin{builder: components.NewBuilder("rec").WithInterceptor(rec)},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{
		interceptor.HookBeforeSerialization,
		interceptor.HookBeforeRetryLoop,
		interceptor.HookBeforeSigning,
		interceptor.HookBeforeTransmit,
	}, rec.hooks)
	assert.Equal(t, 1, result.Attempts)
	assert.Nil(t, result.Response)
}

func TestInvoke_DefaultBodyHeaders(t *testing.T) {
	o := New(nil)

	req, err := o.Presign(context.Background(), putTo("https://example.com/key", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "5", req.Header.Get("Content-Length"))
	assert.Equal(t, serialization.DefaultContentType, req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestInvoke_HeaderSettingsFromConfig(t *testing.T) {
	layer := configbag.NewLayer("settings")
	configbag.Store(layer, serialization.NewHeaderSettings().OmitDefaultContentType())
	o := New(nil)

	req, err := o.Presign(context.Background(), putTo("https://example.com/key", "hello"),
		testPlugin{layer: layer.Freeze()})
	require.NoError(t, err)
	assert.Equal(t, "5", req.Header.Get("Content-Length"))
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestInvoke_SignsWithComponentClock(t *testing.T) {
	o := New(testSigner())

	req, err := o.Presign(context.Background(), putTo("https://example.com/key", ""),
		signing(),
		testPlugin{builder: components.NewBuilder("clock").WithTimeSource(timesource.NewStaticTimeSource(t0))},
	)
	require.NoError(t, err)
	assert.Equal(t, "20240115T120000Z", req.Header.Get("X-Amz-Date"))
	assert.Contains(t, req.Header.Get("Authorization"), "Credential=AKIDEXAMPLE/20240115/us-east-1/s3/aws4_request")
}

func TestInvoke_TransmitsWithSDKHeaders(t *testing.T) {
	var got http.Header
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	o := New(testSigner(), WithHTTPClient(server.Client()))
	result, err := o.Invoke(context.Background(), putTo(server.URL+"/key", "payload"), StopNone,
		sdkheaders.NewPlugin("tests"),
		signing(),
	)
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	assert.Equal(t, "payload", body)
	assert.NotEmpty(t, got.Get("Authorization"))
	assert.NotEmpty(t, got.Get(sdkheaders.InvocationIDHeader))
	assert.Equal(t, "attempt=1; max=3", got.Get(sdkheaders.RequestInfoHeader))
	assert.Contains(t, got.Get(sdkheaders.UserAgentHeader), "app/tests")
}

func TestInvoke_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var ids []string
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get(sdkheaders.InvocationIDHeader))
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	o := New(testSigner(), WithHTTPClient(server.Client()))
	result, err := o.Invoke(context.Background(), putTo(server.URL+"/key", "payload"), StopNone,
		sdkheaders.NewPlugin(""),
		signing(),
		testPlugin{builder: components.NewBuilder("retry").WithRetryStrategy(fastRetry{max: 3})},
	)
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[1], ids[2])
	assert.Equal(t, []string{"payload", "payload", "payload"}, bodies)
}

func TestInvoke_UnseekableBodyNotResent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	op := Operation{
		Name: "PutObject",
		Serializer: SerializerFunc(func(_ context.Context, _ any, req *smithyhttp.Request) (*smithyhttp.Request, int64, error) {
			req.Method = http.MethodPut
			req.URL, _ = url.Parse(server.URL + "/key")
			req.Host = req.URL.Host
			// MultiReader hides the Seeker of the underlying reader
			return mustStream(req, io.MultiReader(strings.NewReader("payload"))), 7, nil
		}),
	}

	o := New(nil, WithHTTPClient(server.Client()))
	_, err := o.Invoke(context.Background(), op, StopNone,
		testPlugin{builder: components.NewBuilder("retry").WithRetryStrategy(fastRetry{max: 3})},
	)
	require.ErrorIs(t, err, ErrBodyNotReplayable)
	assert.Equal(t, int32(1), calls.Load())
}

func mustStream(req *smithyhttp.Request, body io.Reader) *smithyhttp.Request {
	req, err := req.SetStream(body)
	if err != nil {
		panic(err)
	}
	return req
}

func TestInvoke_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	o := New(nil, WithHTTPClient(server.Client()))
	_, err := o.Invoke(context.Background(), putTo(server.URL+"/key", ""), StopNone,
		testPlugin{builder: components.NewBuilder("retry").WithRetryStrategy(fastRetry{max: 2})},
	)

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	defer respErr.Response.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, respErr.HTTPStatusCode())
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvoke_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	o := New(nil, WithHTTPClient(server.Client()))
	_, err := o.Invoke(context.Background(), putTo(server.URL+"/key", ""), StopNone,
		testPlugin{builder: components.NewBuilder("retry").WithRetryStrategy(fastRetry{max: 5})},
	)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvoke_InterceptorErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	failing := &failingInterceptor{err: boom}
	o := New(testSigner())

	_, err := o.Invoke(context.Background(), putTo("https://example.com/key", ""), StopNone,
		signing(),
		testPlugin{builder: components.NewBuilder("fail").
			WithInterceptor(failing).
			WithRetryStrategy(fastRetry{max: 5})},
	)
	require.ErrorIs(t, err, boom)

	var ierr *interceptor.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, interceptor.HookBeforeSigning, ierr.Hook)
	assert.Equal(t, 1, failing.calls)
}

type failingInterceptor struct {
	interceptor.Base
	err   error
	calls int
}

func (f *failingInterceptor) Name() string { return "failing" }

func (f *failingInterceptor) ModifyBeforeSigning(context.Context, *interceptor.Context, *configbag.Bag) error {
	f.calls++
	return f.err
}

func TestInvoke_NoSerializer(t *testing.T) {
	_, err := New(nil).Invoke(context.Background(), Operation{Name: "Op"}, StopNone)
	assert.ErrorIs(t, err, ErrNoSerializer)
}

func TestInvoke_SerializerError(t *testing.T) {
	op := Operation{
		Name: "Op",
		Serializer: SerializerFunc(func(context.Context, any, *smithyhttp.Request) (*smithyhttp.Request, int64, error) {
			return nil, 0, errors.New("bad input")
		}),
	}
	_, err := New(nil).Invoke(context.Background(), op, StopNone)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to serialize Op")
}

func TestInvoke_NilInterceptor(t *testing.T) {
	_, err := New(nil).Invoke(context.Background(), putTo("https://example.com/key", ""), StopNone,
		testPlugin{builder: components.NewBuilder("nil").WithInterceptor(nil)},
	)
	assert.ErrorIs(t, err, components.ErrNilInterceptor)
}

func TestInvoke_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Invoke(ctx, putTo("https://example.com/key", ""), StopNone)
	assert.ErrorIs(t, err, context.Canceled)
}
