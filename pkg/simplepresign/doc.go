// Package simplepresign turns a signing request pipeline into one that produces
// presigned requests: URLs whose SigV4 signature travels in the query string and
// that stay valid for a fixed window.
//
// Two pieces do the work:
//
//   - Interceptor, which tells the serializer not to emit default body headers
//     and switches the operation signing config to query-parameter placement with
//     the configured expiry and payload override.
//   - Plugin, which registers the interceptor together with a clock pinned to the
//     start time and a retry strategy that never retries, and disables the
//     interceptors that would stamp an invocation id, attempt info or a user agent
//     onto the request.
//
// # Basic Usage
//
//	cfg, err := simplepresign.NewConfig(15*time.Minute)
//	if err != nil {
//	    return err
//	}
//
//	o := orchestrator.New(signer)
//	req, err := o.Presign(ctx, op,
//	    sdkheaders.NewPlugin(""),
//	    sigv4.NewSigningPlugin(sigv4.OperationSigningConfig{Region: "us-east-1", Service: "s3"}),
//	    simplepresign.NewPlugin(cfg, sigv4.UnsignedPayload{}),
//	)
//
// The signing plugin must come before the presigning plugin: the presigning
// interceptor edits the signing config, it never creates one. A pipeline without
// it fails with ErrMissingSigningConfig.
//
// For Amazon S3 see the storage/s3 subpackage, which wraps all of the above.
package simplepresign
