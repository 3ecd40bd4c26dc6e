package simplepresign

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
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
	"github.com/tendant/simple-presign/pkg/simplepresign/orchestrator"
	"github.com/tendant/simple-presign/pkg/simplepresign/retries"
	"github.com/tendant/simple-presign/pkg/simplepresign/sdkheaders"
	"github.com/tendant/simple-presign/pkg/simplepresign/sigv4"
)

func TestPlugin_RuntimeComponents(t *testing.T) {
	p := NewPlugin(mustConfig(t, 5*time.Minute), sigv4.UnsignedPayload{})

	rc, err := p.RuntimeComponents().Build()
	require.NoError(t, err)

	interceptors := rc.Interceptors()
	require.Len(t, interceptors, 1)
	assert.IsType(t, &Interceptor{}, interceptors[0])

	strategy := rc.RetryStrategy()
	assert.Equal(t, 1, strategy.MaxAttempts())
	_, retry := strategy.ShouldRetry(1, errors.New("boom"))
	assert.False(t, retry)

	assert.Equal(t, t0, rc.TimeSource().Now())
	assert.Equal(t, t0, rc.TimeSource().Now())
}

func TestPlugin_DisablesMetadataInterceptors(t *testing.T) {
	p := NewPlugin(mustConfig(t, 5*time.Minute), nil)

	disabled := interceptor.DisabledIn(p.Config())
	require.Len(t, disabled, 3)
	for _, d := range disabled {
		assert.Equal(t, DisabledReason, d.Reason)
	}

	bag := configbag.New("test")
	bag.AddLayer(p.Config())
	for _, i := range []interceptor.Interceptor{
		sdkheaders.NewInvocationIDInterceptor(),
		sdkheaders.NewRequestInfoInterceptor(),
		sdkheaders.NewUserAgentInterceptor("app"),
	} {
		reason, ok := interceptor.DisabledReason(bag, i)
		assert.True(t, ok, i.Name())
		assert.Equal(t, "presigning", reason)
	}

	_, ok := interceptor.DisabledReason(bag, NewInterceptor(mustConfig(t, time.Minute), nil))
	assert.False(t, ok)
}

func TestPlugin_OverridesEarlierComponents(t *testing.T) {
	base := components.NewBuilder("client").WithRetryStrategy(retries.NewStandard(5))
	merged, layers := components.Apply(base,
		sdkheaders.NewPlugin(""),
		NewPlugin(mustConfig(t, time.Minute), nil),
	)
	rc, err := merged.Build()
	require.NoError(t, err)

	assert.Equal(t, 1, rc.RetryStrategy().MaxAttempts())
	assert.Equal(t, t0, rc.TimeSource().Now())
	assert.Len(t, rc.Interceptors(), 4)
	assert.Len(t, layers, 1)
}

func TestNewConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cfg, err := NewConfig(15*time.Minute, WithStartTime(t0))
		require.NoError(t, err)
		assert.Equal(t, t0, cfg.StartTime())
		assert.Equal(t, 15*time.Minute, cfg.Expires())
		assert.Equal(t, t0.Add(15*time.Minute), cfg.ExpiresAt())
	})

	t.Run("DefaultsToNow", func(t *testing.T) {
		before := time.Now()
		cfg, err := NewConfig(time.Minute)
		require.NoError(t, err)
		assert.False(t, cfg.StartTime().Before(before))
	})

	t.Run("TimeSource", func(t *testing.T) {
		cfg, err := NewConfig(time.Minute, WithTimeSource(fixedClock(t0)))
		require.NoError(t, err)
		assert.Equal(t, t0, cfg.StartTime())
	})

	t.Run("MinExpires", func(t *testing.T) {
		cfg, err := NewConfig(MinExpires, WithStartTime(t0))
		require.NoError(t, err)
		assert.Equal(t, time.Second, cfg.Expires())
	})

	t.Run("MaxExpires", func(t *testing.T) {
		_, err := NewConfig(MaxExpires)
		assert.NoError(t, err)
	})

	tests := []struct {
		name    string
		expires time.Duration
		wantErr error
	}{
		{"zero", 0, ErrExpiresUnset},
		{"negative", -time.Second, ErrExpiresUnset},
		{"sub-second", 500 * time.Millisecond, ErrExpiresUnset},
		{"too long", MaxExpires + time.Second, ErrExpiresTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.expires)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsConfigError(err))
			assert.False(t, IsAssemblyError(err))
		})
	}
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// pipeline helpers

var testCredentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", ""))

func putObject(body string) orchestrator.Operation {
	return orchestrator.Operation{
		Name:  "PutObject",
		Input: body,
		Serializer: orchestrator.SerializerFunc(func(_ context.Context, input any, req *smithyhttp.Request) (*smithyhttp.Request, int64, error) {
			req.Method = http.MethodPut
			req.URL, _ = url.Parse("https://examplebucket.s3.amazonaws.com/photos/cat.jpg")
			req.Host = req.URL.Host
			s := input.(string)
			req, err := req.SetStream(strings.NewReader(s))
			return req, int64(len(s)), err
		}),
	}
}

func s3Signing() *sigv4.SigningPlugin {
	return sigv4.NewSigningPlugin(sigv4.OperationSigningConfig{
		Region:  "us-east-1",
		Service: "s3",
		Options: sigv4.SigningOptions{DisableURIPathEscaping: true},
	})
}

func TestPresign_EndToEnd(t *testing.T) {
	o := orchestrator.New(sigv4.NewSigner(testCredentials))

	req, err := o.Presign(context.Background(), putObject("hello"),
		sdkheaders.NewPlugin("tests"),
		s3Signing(),
		NewPlugin(mustConfig(t, 300*time.Second), sigv4.UnsignedPayload{}),
	)
	require.NoError(t, err)

	q := req.URL.Query()
	assert.Equal(t, "AWS4-HMAC-SHA256", q.Get("X-Amz-Algorithm"))
	assert.Equal(t, "20240115T120000Z", q.Get("X-Amz-Date"))
	assert.Equal(t, "300", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("X-Amz-Credential"), "/20240115/us-east-1/s3/aws4_request")
	assert.Empty(t, q.Get("X-Amz-User-Agent"))

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get(sdkheaders.InvocationIDHeader))
	assert.Empty(t, req.Header.Get(sdkheaders.RequestInfoHeader))
	assert.Empty(t, req.Header.Get(sdkheaders.UserAgentHeader))
	assert.Empty(t, req.Header.Get(sdkheaders.AmzUserAgentHeader))
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Content-Length"))

	presigned := NewPresignedRequest(req, mustConfig(t, 300*time.Second))
	assert.Equal(t, http.MethodPut, presigned.Method)
	assert.Equal(t, t0.Add(300*time.Second), presigned.ExpiresAt)
	assert.True(t, strings.HasPrefix(presigned.URL, "https://examplebucket.s3.amazonaws.com/photos/cat.jpg?"))
}

func TestPresign_Deterministic(t *testing.T) {
	o := orchestrator.New(sigv4.NewSigner(testCredentials))
	cfg := mustConfig(t, time.Hour)
	plugin := NewPlugin(cfg, sigv4.UnsignedPayload{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		urls = map[string]struct{}{}
	)
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := o.Presign(context.Background(), putObject("hello"), sdkheaders.NewPlugin(""), s3Signing(), plugin)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			urls[req.URL.String()] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, urls, 1)
}

func TestPresign_MissingSigningPlugin(t *testing.T) {
	o := orchestrator.New(sigv4.NewSigner(testCredentials))

	_, err := o.Presign(context.Background(), putObject("hello"),
		NewPlugin(mustConfig(t, time.Minute), sigv4.UnsignedPayload{}),
	)
	require.ErrorIs(t, err, ErrMissingSigningConfig)

	var ierr *interceptor.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, interceptor.HookBeforeSigning, ierr.Hook)
	assert.Equal(t, "PresigningInterceptor", ierr.Interceptor)
}

func TestPresign_SigningPluginAfterPresigningStillWorks(t *testing.T) {
	o := orchestrator.New(sigv4.NewSigner(testCredentials))

	// the signing layer only seeds the config; the interceptor's write in the
	// request state wins regardless of plugin order
	req, err := o.Presign(context.Background(), putObject("hello"),
		NewPlugin(mustConfig(t, time.Minute), sigv4.UnsignedPayload{}),
		s3Signing(),
	)
	require.NoError(t, err)
	assert.Equal(t, "60", req.URL.Query().Get("X-Amz-Expires"))
}

func TestPresignedRequest_MakeHTTPRequest(t *testing.T) {
	p := &PresignedRequest{
		Method: http.MethodPut,
		URL:    "https://examplebucket.s3.amazonaws.com/a.txt?X-Amz-Signature=abc",
		Header: http.Header{"X-Amz-Server-Side-Encryption": {"AES256"}},
	}

	req, err := p.MakeHTTPRequest(context.Background(), strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "abc", req.URL.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "AES256", req.Header.Get("X-Amz-Server-Side-Encryption"))

	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))

	// the request owns its header values
	req.Header.Add("X-Amz-Server-Side-Encryption", "extra")
	assert.Len(t, p.Header["X-Amz-Server-Side-Encryption"], 1)
}

func TestPresignedRequest_InvalidURL(t *testing.T) {
	p := &PresignedRequest{Method: http.MethodGet, URL: "://bad"}
	_, err := p.MakeHTTPRequest(context.Background(), nil)
	assert.Error(t, err)
}
