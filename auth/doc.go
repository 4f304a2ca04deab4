// Package auth resolves the viewer of a GraphQL request.
//
// The viewer decides two things downstream: it is part of every result
// cache key (ViewerID), and an authenticated viewer bypasses the result
// cache entirely (IsAuthenticated). Authenticators turn request headers
// into an Identity; ResolveViewer attaches the outcome to the context.
//
//	authn := auth.NewCompositeAuthenticator(
//		auth.NewJWTAuthenticator(auth.JWTConfig{Issuer: "https://cms.example"}, auth.NewStaticKeyProvider(key)),
//		auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, keys),
//	)
//	ctx, err := auth.ResolveViewer(ctx, authn, r.Header)
package auth
